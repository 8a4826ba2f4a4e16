package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richgang/indice-killer/internal/models"
	"github.com/richgang/indice-killer/pkg/logger"
)

// DirectionMirrorKey is the Redis key holding the shared direction state
const DirectionMirrorKey = "direction:" + models.DirectionStateID

// DirectionLeaseKey guards read-resolve-write cycles on the shared state
const DirectionLeaseKey = DirectionMirrorKey + ":lease"

const (
	directionLeaseTTL   = 10 * time.Second
	directionLeaseRetry = 25 * time.Millisecond
)

// DirectionLocker serializes direction changes across processes
type DirectionLocker interface {
	// LockDirection blocks until the caller holds the direction state or ctx
	// ends. The returned func releases it.
	LockDirection(ctx context.Context) (func(), error)
}

// DirectionMirror writes the direction state through to Redis so that
// replicas share one lock. Reads prefer the Redis copy, since every replica
// writes it, and fall back to the primary store.
type DirectionMirror struct {
	primary DirectionStorage
	redis   RedisClient
}

// NewDirectionMirror wraps primary with a Redis copy
func NewDirectionMirror(primary DirectionStorage, redis RedisClient) *DirectionMirror {
	if primary == nil {
		panic("primary cannot be nil")
	}
	if redis == nil {
		panic("redis cannot be nil")
	}
	return &DirectionMirror{primary: primary, redis: redis}
}

// LoadDirection implements DirectionStorage
func (m *DirectionMirror) LoadDirection(ctx context.Context) (models.DirectionState, error) {
	var state models.DirectionState
	err := m.redis.GetJSON(ctx, DirectionMirrorKey, &state)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, ErrNotFound) {
		logger.ErrorsTotal.WithLabelValues("direction_mirror", "load").Inc()
		logger.WithContext(ctx).Warn("Failed to read mirrored direction state",
			logger.ErrorField(err),
		)
	}
	return m.primary.LoadDirection(ctx)
}

// SaveDirection implements DirectionStorage. The primary write decides the
// outcome; a failed mirror write is only logged.
func (m *DirectionMirror) SaveDirection(ctx context.Context, state models.DirectionState) error {
	if err := m.primary.SaveDirection(ctx, state); err != nil {
		return err
	}
	if err := m.redis.Set(ctx, DirectionMirrorKey, state, 0); err != nil {
		logger.ErrorsTotal.WithLabelValues("direction_mirror", "save").Inc()
		logger.WithContext(ctx).Warn("Failed to mirror direction state",
			logger.ErrorField(err),
		)
		// a stale copy would shadow the primary on every replica
		if delErr := m.redis.Delete(ctx, DirectionMirrorKey); delErr != nil {
			logger.WithContext(ctx).Warn("Failed to drop mirrored direction state",
				logger.ErrorField(delErr),
			)
		}
	}
	return nil
}

// LockDirection implements DirectionLocker with a Redis lease. The lease
// expires on its own if the holder dies.
func (m *DirectionMirror) LockDirection(ctx context.Context) (func(), error) {
	token := uuid.New().String()
	for {
		ok, err := m.redis.SetNX(ctx, DirectionLeaseKey, token, directionLeaseTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire direction lease: %w", err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(directionLeaseRetry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("failed to acquire direction lease: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return func() {
		// released even when the request context is already done
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := m.redis.DeleteIfValue(releaseCtx, DirectionLeaseKey, token); err != nil {
			logger.Warn("Failed to release direction lease", logger.ErrorField(err))
		}
	}, nil
}

var (
	_ DirectionStorage = (*DirectionMirror)(nil)
	_ DirectionLocker  = (*DirectionMirror)(nil)
)
