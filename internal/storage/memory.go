package storage

import (
	"context"
	"sync"
)

// MemoryStorage is an in-process Storage. Values are normalized through
// JSON on write so they read back the same way MetaStorage returns them.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[int64]map[string]any
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[int64]map[string]any)}
}

func (m *MemoryStorage) Persist(_ context.Context, entityID int64, key string, value any) error {
	v, _, err := normalize(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[entityID] == nil {
		m.values[entityID] = make(map[string]any)
	}
	m.values[entityID][key] = v
	return nil
}

func (m *MemoryStorage) Retrieve(_ context.Context, entityID int64, key string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[entityID][key]
	if !ok {
		return "", nil
	}
	return v, nil
}

func (m *MemoryStorage) RetrieveAll(_ context.Context, entityID int64) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.values[entityID]))
	for k, v := range m.values[entityID] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStorage) Delete(_ context.Context, entityID int64, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[entityID][key]; !ok {
		return false, nil
	}
	delete(m.values[entityID], key)
	return true, nil
}
