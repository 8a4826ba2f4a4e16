package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/richgang/indice-killer/internal/models"
)

// MockSignalStorage wraps a MemoryStore and injects errors for testing
type MockSignalStorage struct {
	*MemoryStore
	WriteErr error
	ListErr  error
}

// NewMockSignalStorage creates an empty mock
func NewMockSignalStorage() *MockSignalStorage {
	return &MockSignalStorage{MemoryStore: NewMemoryStore()}
}

func (m *MockSignalStorage) WriteSignal(ctx context.Context, signal *models.Signal) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	return m.MemoryStore.WriteSignal(ctx, signal)
}

func (m *MockSignalStorage) ListActiveSignals(ctx context.Context, limit int) ([]*models.Signal, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.MemoryStore.ListActiveSignals(ctx, limit)
}

func (m *MockSignalStorage) ListPendingSignals(ctx context.Context, limit int) ([]*models.Signal, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.MemoryStore.ListPendingSignals(ctx, limit)
}

// MockDirectionStorage is a mock implementation of DirectionStorage for testing
type MockDirectionStorage struct {
	mu      sync.Mutex
	State   *models.DirectionState
	Saves   int
	LoadErr error
	SaveErr error
}

func (m *MockDirectionStorage) LoadDirection(ctx context.Context) (models.DirectionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return models.DirectionState{}, m.LoadErr
	}
	if m.State == nil {
		return models.DirectionState{}, ErrNotFound
	}
	return *m.State, nil
}

func (m *MockDirectionStorage) SaveDirection(ctx context.Context, state models.DirectionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saves++
	m.State = &state
	return nil
}

// Saved returns the last saved state, if any
func (m *MockDirectionStorage) Saved() (models.DirectionState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.State == nil {
		return models.DirectionState{}, false
	}
	return *m.State, true
}

// MockRedisClient is a mock implementation of RedisClient for testing
type MockRedisClient struct {
	mu           sync.Mutex
	Data         map[string]string
	TTLs         map[string]time.Duration
	Published    []PubSubMessage
	PubSubData   []PubSubMessage
	PublishErr   error
	GetErr       error
	SetErr       error
	SubscribeErr error
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{
		Data: make(map[string]string),
		TTLs: make(map[string]time.Duration),
	}
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	// Marshal to JSON like the real implementation
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = string(jsonData)
	m.TTLs[key] = ttl
	return nil
}

func (m *MockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetErr != nil {
		return "", m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	value, exists := m.Data[key]
	if !exists {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *MockRedisClient) GetJSON(ctx context.Context, key string, dest interface{}) error {
	value, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(value), dest)
}

func (m *MockRedisClient) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Data, key)
	delete(m.TTLs, key)
	return nil
}

func (m *MockRedisClient) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.Data[key]
	return exists, nil
}

func (m *MockRedisClient) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if m.SetErr != nil {
		return false, m.SetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.Data[key]; exists {
		return false, nil
	}
	m.Data[key] = value
	m.TTLs[key] = ttl
	return true, nil
}

func (m *MockRedisClient) DeleteIfValue(ctx context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, exists := m.Data[key]; !exists || current != value {
		return false, nil
	}
	delete(m.Data, key)
	delete(m.TTLs, key)
	return true, nil
}

func (m *MockRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}
	var payload string
	switch v := message.(type) {
	case string:
		payload = v
	case []byte:
		payload = string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		payload = string(b)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, PubSubMessage{Channel: channel, Message: payload})
	return nil
}

func (m *MockRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan PubSubMessage, error) {
	if m.SubscribeErr != nil {
		return nil, m.SubscribeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan PubSubMessage, len(m.PubSubData))
	for _, msg := range m.PubSubData {
		ch <- msg
	}
	close(ch)
	return ch, nil
}

// PublishedMessages returns a copy of everything published so far
func (m *MockRedisClient) PublishedMessages() []PubSubMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PubSubMessage(nil), m.Published...)
}

func (m *MockRedisClient) Close() error {
	return nil
}
