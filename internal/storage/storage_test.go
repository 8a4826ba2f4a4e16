package storage

import (
	"context"
	"testing"
	"time"

	"github.com/richgang/indice-killer/internal/config"
	"github.com/richgang/indice-killer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSignal(id string, status models.SignalStatus, confidence int, createdAt time.Time) *models.Signal {
	return &models.Signal{
		ID:         id,
		Symbol:     "US30",
		Direction:  models.DirectionBuy,
		EntryPrice: 41958,
		StopLoss:   41790,
		TP1:        42126,
		TP2:        42252,
		TP3:        42504,
		Confidence: confidence,
		Status:     status,
		IsPending:  status == models.StatusPending,
		CreatedAt:  createdAt,
	}
}

func TestMemoryStore_ListActiveSignals(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)

	require.NoError(t, store.WriteSignal(ctx, testSignal("old", models.StatusActive, 85, base)))
	require.NoError(t, store.WriteSignal(ctx, testSignal("new", models.StatusTP1Hit, 85, base.Add(time.Minute))))
	require.NoError(t, store.WriteSignal(ctx, testSignal("mid", models.StatusTP2Hit, 85, base.Add(30*time.Second))))
	require.NoError(t, store.WriteSignal(ctx, testSignal("stopped", models.StatusStopped, 85, base)))
	require.NoError(t, store.WriteSignal(ctx, testSignal("pending", models.StatusPending, 95, base)))

	active, err := store.ListActiveSignals(ctx, 0)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "new", active[0].ID)
	assert.Equal(t, "mid", active[1].ID)
	assert.Equal(t, "old", active[2].ID)

	limited, err := store.ListActiveSignals(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemoryStore_ListPendingSignals(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	require.NoError(t, store.WriteSignal(ctx, testSignal("p90", models.StatusPending, 90, now)))
	require.NoError(t, store.WriteSignal(ctx, testSignal("p100", models.StatusPending, 100, now)))
	require.NoError(t, store.WriteSignal(ctx, testSignal("active", models.StatusActive, 100, now)))

	pending, err := store.ListPendingSignals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "p100", pending[0].ID)
	assert.Equal(t, "p90", pending[1].ID)
}

func TestMemoryStore_EmptyListsAreNotNil(t *testing.T) {
	store := NewMemoryStore()

	active, err := store.ListActiveSignals(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, active)
	assert.Empty(t, active)
}

func TestMemoryStore_RejectsInvalidSignal(t *testing.T) {
	store := NewMemoryStore()
	sig := testSignal("bad", models.StatusActive, 85, time.Now())
	sig.StopLoss = sig.TP3

	assert.ErrorIs(t, store.WriteSignal(context.Background(), sig), models.ErrInvalidLevels)
}

func TestMemoryStore_Direction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.LoadDirection(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	lockedAt := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveDirection(ctx, models.DirectionState{
		CurrentDirection: models.DirectionSell,
		LockedAt:         &lockedAt,
		Reason:           "LL_LH structure on US30",
	}))

	state, err := store.LoadDirection(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionStateID, state.ID)
	assert.Equal(t, models.DirectionSell, state.CurrentDirection)
	assert.Equal(t, lockedAt, *state.LockedAt)
}

func TestTimestampFormat(t *testing.T) {
	ts := time.Date(2024, 1, 15, 14, 30, 5, 120000000, time.FixedZone("SAST", 2*3600))

	s := FormatTimestamp(ts)
	assert.Equal(t, "2024-01-15T12:30:05.120000Z", s)

	parsed, err := ParseTimestamp(s)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))

	// lexical order follows chronological order
	assert.Less(t, FormatTimestamp(ts), FormatTimestamp(ts.Add(time.Microsecond)))
	assert.Less(t, FormatTimestamp(ts.Truncate(time.Second)), FormatTimestamp(ts))
}

func TestParseTimestamp_AcceptsOffsets(t *testing.T) {
	parsed, err := ParseTimestamp("2024-01-15T14:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 12, 30, 0, 0, time.UTC), parsed)

	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestConnString(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "u",
		Password: "p",
		Database: "indice_killer",
		SSLMode:  "disable",
	}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=indice_killer sslmode=disable", ConnString(cfg))
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, listLimit(0))
	assert.Equal(t, DefaultListLimit, listLimit(1000))
	assert.Equal(t, 5, listLimit(5))
}

// Postgres round-trips need a live database and are not covered here.

func TestMockRedisClient(t *testing.T) {
	ctx := context.Background()
	m := NewMockRedisClient()

	require.NoError(t, m.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))
	var dest map[string]int
	require.NoError(t, m.GetJSON(ctx, "k", &dest))
	assert.Equal(t, 1, dest["a"])
	assert.Equal(t, time.Minute, m.TTLs["k"])

	assert.ErrorIs(t, m.GetJSON(ctx, "missing", &dest), ErrNotFound)

	require.NoError(t, m.Publish(ctx, "ch", map[string]string{"type": "x"}))
	msgs := m.PublishedMessages()
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"type":"x"}`, msgs[0].Message)
}
