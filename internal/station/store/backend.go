// Package store implements the station's generic repository layer: a
// key-value Backend, a typed Repository over it with secondary and unique
// indexes, post-commit observer hooks, and a bounded in-memory cache.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Backend is the primary key-value contract a Repository is built on,
// analogous to the teacher's infrastructure/state.PersistenceBackend.
type Backend interface {
	Save(ctx context.Context, family, key string, value []byte) error
	Load(ctx context.Context, family, key string) ([]byte, bool, error)
	Delete(ctx context.Context, family, key string) error
	// List returns every (key, value) pair in family as an unordered map;
	// Repository.List sorts the keys.
	List(ctx context.Context, family string) (map[string][]byte, error)
}

// MemoryBackend is an in-process Backend backed by maps, used as the
// default when no Postgres DSN is configured and throughout package tests.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]map[string][]byte)}
}

func (m *MemoryBackend) Save(_ context.Context, family, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.data[family]
	if !ok {
		bucket = make(map[string][]byte)
		m.data[family] = bucket
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	bucket[key] = cp
	return nil
}

func (m *MemoryBackend) Load(_ context.Context, family, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket, ok := m.data[family]
	if !ok {
		return nil, false, nil
	}
	v, ok := bucket[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (m *MemoryBackend) Delete(_ context.Context, family, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bucket, ok := m.data[family]; ok {
		delete(bucket, key)
	}
	return nil
}

func (m *MemoryBackend) List(_ context.Context, family string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket := m.data[family]
	out := make(map[string][]byte, len(bucket))
	for k, v := range bucket {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out, nil
}

// sortedKeys returns the keys of m sorted lexically, a helper used by
// Repository.List to produce deterministic ordering before a
// SortingStrategy is applied.
func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ErrNotFound is returned by Repository.Get when no entity exists for id.
var ErrNotFound = fmt.Errorf("store: entity not found")
