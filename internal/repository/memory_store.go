package repository

import (
	"context"
	"sync"
)

// MemoryStore keeps device state for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	devices map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{devices: make(map[string]map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, device, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.devices[device][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Put(_ context.Context, device, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, ok := s.devices[device]
	if !ok {
		kv = make(map[string]string)
		s.devices[device] = kv
	}
	kv[key] = value
	return nil
}

// Delete is a no-op for missing keys.
func (s *MemoryStore) Delete(_ context.Context, device, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, ok := s.devices[device]
	if !ok {
		return nil
	}
	delete(kv, key)
	if len(kv) == 0 {
		delete(s.devices, device)
	}
	return nil
}
