// Package memory provides in-process storage drivers. State does not
// survive a restart.
package memory

import (
	"context"
	"sync"

	"github.com/qorikusi/storefront/internal/domain/kv"
)

var _ kv.Store = (*KV)(nil)

// KV is a kv.Store backed by a map.
type KV struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewKV creates an empty KV.
func NewKV() *KV {
	return &KV{m: make(map[string]string)}
}

func (s *KV) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return "", kv.ErrNotFound
	}
	return v, nil
}

func (s *KV) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *KV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// Len returns the number of stored keys.
func (s *KV) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
