package storage

import (
	"context"
	"errors"
	"time"

	"github.com/richgang/indice-killer/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// DefaultListLimit caps signal listings
const DefaultListLimit = 100

// SignalStorage defines the interface for signal persistence
type SignalStorage interface {
	// WriteSignal stores a newly generated signal
	WriteSignal(ctx context.Context, signal *models.Signal) error

	// ListActiveSignals returns ACTIVE, TP1_HIT and TP2_HIT signals, newest first
	ListActiveSignals(ctx context.Context, limit int) ([]*models.Signal, error)

	// ListPendingSignals returns pending signals, highest confidence first
	ListPendingSignals(ctx context.Context, limit int) ([]*models.Signal, error)

	// Close closes the storage connection
	Close() error
}

// DirectionStorage persists the singleton direction state
type DirectionStorage interface {
	// LoadDirection returns the stored state or ErrNotFound
	LoadDirection(ctx context.Context) (models.DirectionState, error)

	// SaveDirection upserts the state
	SaveDirection(ctx context.Context, state models.DirectionState) error
}

// RedisClient defines the interface for Redis operations
type RedisClient interface {
	// Key-value operations
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Lease operations
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)

	// Pub/Sub operations
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channels ...string) (<-chan PubSubMessage, error)

	// Close closes the Redis connection
	Close() error
}

// PubSubMessage represents a message from Redis pub/sub
type PubSubMessage struct {
	Channel string
	Message string
}

// TimestampLayout is the fixed-width ISO-8601 form timestamps are stored in,
// so that lexical order matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTimestamp renders t in TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses any RFC 3339 timestamp, including TimestampLayout
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
