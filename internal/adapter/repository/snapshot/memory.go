package snapshot

import (
	"context"
	"sync"
)

// MemoryMedium keeps snapshots in process memory. The service's embedded
// backend and tests use it; SaveErr and LoadErr inject failures.
type MemoryMedium struct {
	mu      sync.Mutex
	data    map[string][]byte
	Saves   int
	SaveErr error
	LoadErr error
}

func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{data: make(map[string][]byte)}
}

func (m *MemoryMedium) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	data, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryMedium) Save(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.data[key] = append([]byte(nil), data...)
	m.Saves++
	return nil
}

// SetErrors swaps the injected failures under the lock.
func (m *MemoryMedium) SetErrors(loadErr, saveErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadErr = loadErr
	m.SaveErr = saveErr
}

// SaveCount reports how many successful saves happened.
func (m *MemoryMedium) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Saves
}
