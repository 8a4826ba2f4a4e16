package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/richgang/indice-killer/internal/models"
)

// MemoryStore keeps signals and the direction state in process memory. It
// backs DB-less runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	signals   []*models.Signal
	direction *models.DirectionState
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// WriteSignal implements SignalStorage
func (m *MemoryStore) WriteSignal(ctx context.Context, signal *models.Signal) error {
	if err := signal.Validate(); err != nil {
		return err
	}
	cp := *signal
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, &cp)
	return nil
}

// ListActiveSignals implements SignalStorage
func (m *MemoryStore) ListActiveSignals(ctx context.Context, limit int) ([]*models.Signal, error) {
	result := m.filter(func(s *models.Signal) bool {
		for _, status := range models.OpenStatuses {
			if s.Status == status {
				return true
			}
		}
		return false
	})
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return truncate(result, limit), nil
}

// ListPendingSignals implements SignalStorage
func (m *MemoryStore) ListPendingSignals(ctx context.Context, limit int) ([]*models.Signal, error) {
	result := m.filter(func(s *models.Signal) bool {
		return s.IsPending && s.Status == models.StatusPending
	})
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Confidence > result[j].Confidence
	})
	return truncate(result, limit), nil
}

// LoadDirection implements DirectionStorage
func (m *MemoryStore) LoadDirection(ctx context.Context) (models.DirectionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.direction == nil {
		return models.DirectionState{}, ErrNotFound
	}
	return *m.direction, nil
}

// SaveDirection implements DirectionStorage
func (m *MemoryStore) SaveDirection(ctx context.Context, state models.DirectionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.ID = models.DirectionStateID
	m.direction = &state
	return nil
}

// Close implements SignalStorage
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) filter(keep func(*models.Signal) bool) []*models.Signal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*models.Signal, 0)
	for _, s := range m.signals {
		if keep(s) {
			cp := *s
			result = append(result, &cp)
		}
	}
	return result
}

func truncate(signals []*models.Signal, limit int) []*models.Signal {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(signals) > limit {
		return signals[:limit]
	}
	return signals
}
