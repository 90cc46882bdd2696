package storage

import (
	"context"
	"sync"
)

// Memory is a map-backed store. Its contents vanish with the process.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Get implements ports.KeyValueStore.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]

	return v, ok, nil
}

// Set implements ports.KeyValueStore.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value

	return nil
}

// Name implements ports.HealthChecker.
func (m *Memory) Name() string { return "storage" }

// Check implements ports.HealthChecker. Memory is always healthy.
func (m *Memory) Check(context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }
