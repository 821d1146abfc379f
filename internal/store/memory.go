package store

import (
	"context"
	"sync"
)

type Memory struct {
	lock   sync.RWMutex
	values map[string][]byte
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}

	return append([]byte(nil), v...), nil
}

func (m *Memory) Close() error {
	return nil
}
