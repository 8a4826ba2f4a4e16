package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/richgang/indice-killer/internal/models"
	"github.com/richgang/indice-killer/internal/session"
	"github.com/richgang/indice-killer/internal/signal"
	"github.com/richgang/indice-killer/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nySession = time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)

type staticQuotes struct {
	mu    sync.Mutex
	calls int
}

func (s *staticQuotes) Get(_ context.Context, symbol string) *models.Quote {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return &models.Quote{Symbol: symbol, Price: 42000, Change: 10, ChangePercent: 0.02, Timestamp: nySession}
}

type fixedStructure models.StructureType

func (f fixedStructure) Analyze(string, float64) models.StructureAnalysis {
	return models.StructureAnalysis{
		HTFStructureClear:  true,
		LiquiditySwept:     true,
		StrongDisplacement: true,
		CleanPullback:      true,
		NoCounterPressure:  true,
		StructureType:      models.StructureType(f),
	}
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []models.BroadcastMessage
}

func (r *recordingBroadcaster) Broadcast(_ context.Context, msg models.BroadcastMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recordingBroadcaster) Messages() []models.BroadcastMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.BroadcastMessage(nil), r.messages...)
}

type fixture struct {
	service     *Service
	signals     *storage.MockSignalStorage
	directions  *storage.MockDirectionStorage
	broadcaster *recordingBroadcaster
	quotes      *staticQuotes
}

func newFixture(now time.Time, st models.StructureType) *fixture {
	cfg := signal.DefaultConfig()
	cfg.Draw = func() float64 { return 0 }
	cal := session.NewCalendar(func() time.Time { return now })
	gen := signal.NewGenerator(cfg, cal, fixedStructure(st), signal.NewDirectionMachine())

	f := &fixture{
		signals:     storage.NewMockSignalStorage(),
		directions:  &storage.MockDirectionStorage{},
		broadcaster: &recordingBroadcaster{},
		quotes:      &staticQuotes{},
	}
	f.service = NewService(f.quotes, gen, f.signals, f.directions, f.broadcaster, nil)
	return f
}

func TestService_GenerateSignalPersistsAndBroadcasts(t *testing.T) {
	f := newFixture(nySession, models.StructureHigherHighs)
	ctx := context.Background()

	sig, decline, err := f.service.GenerateSignal(ctx, "US30", "")
	require.NoError(t, err)
	require.Equal(t, signal.DeclineNone, decline)
	require.NotNil(t, sig)

	active, err := f.service.ActiveSignals(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, sig.ID, active[0].ID)

	saved, ok := f.directions.Saved()
	require.True(t, ok)
	assert.Equal(t, models.DirectionBuy, saved.CurrentDirection)
	assert.NotNil(t, saved.LockedAt)

	msgs := f.broadcaster.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.BroadcastNewSignal, msgs[0].Type)
	assert.Equal(t, sig.ID, msgs[0].Signal.ID)
}

func TestService_GenerateSignalDecline(t *testing.T) {
	outside := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)
	f := newFixture(outside, models.StructureHigherHighs)

	sig, decline, err := f.service.GenerateSignal(context.Background(), "US30", "")

	require.NoError(t, err)
	assert.Nil(t, sig)
	assert.Equal(t, signal.DeclineSessionInactive, decline)
	assert.Empty(t, f.broadcaster.Messages())
	assert.Equal(t, 0, f.directions.Saves)
}

func TestService_GenerateSignalStorageError(t *testing.T) {
	f := newFixture(nySession, models.StructureHigherHighs)
	f.signals.WriteErr = assert.AnError

	sig, _, err := f.service.GenerateSignal(context.Background(), "US30", "")

	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, sig)
	assert.Empty(t, f.broadcaster.Messages())

	// no signal was stored, so no lock may survive
	assert.Equal(t, 0, f.directions.Saves)
	assert.Equal(t, models.NeutralDirectionState(), f.service.generator.Direction().Current())
	assert.Equal(t, models.DirectionNeutral, f.service.Direction(context.Background()).CurrentDirection)
}

func TestService_GenerateSignalDirectionSaveErrorRollsBack(t *testing.T) {
	f := newFixture(nySession, models.StructureLowerLows)
	f.directions.SaveErr = assert.AnError

	_, _, err := f.service.GenerateSignal(context.Background(), "US30", "")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, models.DirectionNeutral, f.service.generator.Direction().Current().CurrentDirection)

	f.directions.SaveErr = nil
	sig, _, err := f.service.GenerateSignal(context.Background(), "US30", models.DirectionBuy)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionBuy, sig.Direction)
}

func TestService_GenerateSignalLoadErrorFails(t *testing.T) {
	f := newFixture(nySession, models.StructureHigherHighs)
	f.directions.LoadErr = assert.AnError

	sig, _, err := f.service.GenerateSignal(context.Background(), "US30", "")

	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, sig)
	active, err := f.service.ActiveSignals(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestService_PersistsResolvedState(t *testing.T) {
	f := newFixture(nySession, models.StructureHigherHighs)

	sig, _, err := f.service.GenerateSignal(context.Background(), "US30", models.DirectionSell)
	require.NoError(t, err)

	saved, ok := f.directions.Saved()
	require.True(t, ok)
	assert.Equal(t, sig.Direction, saved.CurrentDirection)
	assert.Equal(t, "forced SELL on US30", saved.Reason)
	require.NotNil(t, saved.LockedAt)
	assert.True(t, saved.LockedAt.Equal(sig.CreatedAt))
}

// newReplica builds a service whose direction state is mirrored through the
// shared Redis client, as each cmd/api process does.
func newReplica(st models.StructureType, redis *storage.MockRedisClient) *Service {
	cfg := signal.DefaultConfig()
	cfg.Draw = func() float64 { return 0 }
	cal := session.NewCalendar(func() time.Time { return nySession })
	gen := signal.NewGenerator(cfg, cal, fixedStructure(st), signal.NewDirectionMachine())
	directions := storage.NewDirectionMirror(storage.NewMemoryStore(), redis)
	return NewService(&staticQuotes{}, gen, storage.NewMemoryStore(), directions, nil, nil)
}

func TestService_ReplicasShareDirectionLock(t *testing.T) {
	redis := storage.NewMockRedisClient()
	a := newReplica(models.StructureHigherHighs, redis)
	b := newReplica(models.StructureLowerLows, redis)
	ctx := context.Background()

	sigA, _, err := a.GenerateSignal(ctx, "US30", "")
	require.NoError(t, err)
	require.Equal(t, models.DirectionBuy, sigA.Direction)

	// b sees LL_LH but the lock taken by a holds
	sigB, _, err := b.GenerateSignal(ctx, "US100", "")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionBuy, sigB.Direction)
	assert.Equal(t, models.DirectionBuy, b.Direction(ctx).CurrentDirection)

	// a reset on a releases b's lock too
	_, err = a.ResetDirection(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionNeutral, b.Direction(ctx).CurrentDirection)

	sigB, _, err = b.GenerateSignal(ctx, "US30", "")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionSell, sigB.Direction)

	sigA, _, err = a.GenerateSignal(ctx, "GER30", "")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionSell, sigA.Direction)

	assert.NotContains(t, redis.Data, storage.DirectionLeaseKey)
}

func TestService_ConcurrentReplicasAgreeOnDirection(t *testing.T) {
	redis := storage.NewMockRedisClient()
	replicas := []*Service{
		newReplica(models.StructureHigherHighs, redis),
		newReplica(models.StructureLowerLows, redis),
	}

	var wg sync.WaitGroup
	directions := make([]models.Direction, 10)
	for i := range directions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sig, _, err := replicas[i%2].GenerateSignal(context.Background(), "US30", "")
			if assert.NoError(t, err) && assert.NotNil(t, sig) {
				directions[i] = sig.Direction
			}
		}(i)
	}
	wg.Wait()

	for _, d := range directions {
		assert.Equal(t, directions[0], d)
	}
}

func TestService_GenerateSignalLeaseError(t *testing.T) {
	redis := storage.NewMockRedisClient()
	replica := newReplica(models.StructureHigherHighs, redis)
	redis.SetErr = assert.AnError

	sig, _, err := replica.GenerateSignal(context.Background(), "US30", "")

	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, sig)
}

func TestService_DirectionFallsBackToMemory(t *testing.T) {
	f := newFixture(nySession, models.StructureLowerLows)
	ctx := context.Background()

	assert.Equal(t, models.DirectionNeutral, f.service.Direction(ctx).CurrentDirection)

	_, _, err := f.service.GenerateSignal(ctx, "US30", "")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionSell, f.service.Direction(ctx).CurrentDirection)

	f.directions.LoadErr = assert.AnError
	assert.Equal(t, models.DirectionSell, f.service.Direction(ctx).CurrentDirection)
}

func TestService_ResetDirection(t *testing.T) {
	f := newFixture(nySession, models.StructureHigherHighs)
	ctx := context.Background()

	_, _, err := f.service.GenerateSignal(ctx, "US30", "")
	require.NoError(t, err)

	state, err := f.service.ResetDirection(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionNeutral, state.CurrentDirection)

	saved, _ := f.directions.Saved()
	assert.Equal(t, models.DirectionNeutral, saved.CurrentDirection)
	assert.Nil(t, saved.LockedAt)
	assert.Empty(t, saved.Reason)
}

func TestService_Restore(t *testing.T) {
	f := newFixture(nySession, models.StructureHigherHighs)
	lockedAt := nySession.Add(-time.Hour)
	f.directions.State = &models.DirectionState{
		ID:               models.DirectionStateID,
		CurrentDirection: models.DirectionSell,
		LockedAt:         &lockedAt,
	}

	require.NoError(t, f.service.Restore(context.Background()))

	// restored SELL lock wins over an HH_HL structure
	sig, _, err := f.service.GenerateSignal(context.Background(), "US30", "")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionSell, sig.Direction)
}

func TestService_RestoreWithoutState(t *testing.T) {
	f := newFixture(nySession, models.StructureHigherHighs)
	assert.NoError(t, f.service.Restore(context.Background()))

	f.directions.LoadErr = assert.AnError
	assert.ErrorIs(t, f.service.Restore(context.Background()), assert.AnError)
}

func TestFeed_TickBroadcastsSnapshotWithoutTouchingDirection(t *testing.T) {
	f := newFixture(nySession, models.StructureHigherHighs)
	feed := NewFeed(f.service, f.broadcaster, time.Second)

	feed.Tick(context.Background())

	msgs := f.broadcaster.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.BroadcastMarketUpdate, msgs[0].Type)
	assert.Len(t, msgs[0].Data, 3)
	assert.Equal(t, 42000.0, msgs[0].Data["GER30"].Price)
	assert.Equal(t, 0, f.directions.Saves)
	assert.Equal(t, models.DirectionNeutral, f.service.Direction(context.Background()).CurrentDirection)
}

func TestFeed_StartStop(t *testing.T) {
	f := newFixture(nySession, models.StructureHigherHighs)
	feed := NewFeed(f.service, f.broadcaster, 10*time.Millisecond)

	require.NoError(t, feed.Start())
	assert.Error(t, feed.Start())

	require.Eventually(t, func() bool { return len(f.broadcaster.Messages()) >= 2 }, time.Second, 5*time.Millisecond)
	feed.Stop()
	feed.Stop()
}

func TestFanout(t *testing.T) {
	a, b := &recordingBroadcaster{}, &recordingBroadcaster{}
	Fanout{a, nil, b}.Broadcast(context.Background(), models.MarketUpdateMessage(nil))

	assert.Len(t, a.Messages(), 1)
	assert.Len(t, b.Messages(), 1)
}

func TestMarkets_Snapshot(t *testing.T) {
	quotes := &staticQuotes{}
	markets := NewMarkets(quotes, []string{"US30"})

	snapshot := markets.MarketSnapshot(context.Background())

	require.Len(t, snapshot, 1)
	assert.Equal(t, 42000.0, snapshot["US30"].Price)
	assert.Equal(t, 1, quotes.calls)
	assert.Equal(t, models.Symbols, NewMarkets(quotes, nil).Symbols())
}

func TestFeed_AcceptsQuoteOnlySource(t *testing.T) {
	b := &recordingBroadcaster{}
	feed := NewFeed(NewMarkets(&staticQuotes{}, nil), b, time.Second)

	feed.Tick(context.Background())

	msgs := b.Messages()
	require.Len(t, msgs, 1)
	assert.Len(t, msgs[0].Data, len(models.Symbols))
}
