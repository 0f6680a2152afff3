package database

import (
	"context"
	"sync"
)

// Memory keeps documents in process memory. Used in tests and for throwaway runs.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemory creates an empty in-memory backend
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, guildID string, kind Kind) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.docs[guildID+"/"+string(kind)]
	if !ok {
		return nil, ErrNoDocument
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Put(_ context.Context, guildID string, kind Kind, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[guildID+"/"+string(kind)] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Close() error { return nil }
