package store

import (
	"sort"
	"sync"
)

// Index is an in-memory secondary index mapping a derived key to the set of
// entity IDs that produced it, e.g. Request.Status -> []Request.ID (§4.1).
// It is rebuilt from Repository.List on startup and kept current by wiring
// Repository observers to Add/Remove.
type Index[K comparable] struct {
	mu      sync.RWMutex
	entries map[K]map[string]struct{}
}

// NewIndex creates an empty Index.
func NewIndex[K comparable]() *Index[K] {
	return &Index[K]{entries: make(map[K]map[string]struct{})}
}

// Add records that id produced key. Safe to call more than once for the same
// pair.
func (idx *Index[K]) Add(key K, id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	bucket, ok := idx.entries[key]
	if !ok {
		bucket = make(map[string]struct{})
		idx.entries[key] = bucket
	}
	bucket[id] = struct{}{}
}

// Remove drops the (key, id) association, pruning the bucket if it empties.
func (idx *Index[K]) Remove(key K, id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	bucket, ok := idx.entries[key]
	if !ok {
		return
	}
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(idx.entries, key)
	}
}

// Lookup returns every id currently associated with key, sorted for
// deterministic iteration.
func (idx *Index[K]) Lookup(key K) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	bucket := idx.entries[key]
	out := make([]string, 0, len(bucket))
	for id := range bucket {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// UniqueIndex enforces a one-to-one mapping between a derived key and an
// entity ID (e.g. UserGroup.Name, NamedRule.Name) per §8 invariant 6: a
// second Set under a key already owned by a different id is rejected.
type UniqueIndex[K comparable] struct {
	mu      sync.Mutex
	entries map[K]string
}

// NewUniqueIndex creates an empty UniqueIndex.
func NewUniqueIndex[K comparable]() *UniqueIndex[K] {
	return &UniqueIndex[K]{entries: make(map[K]string)}
}

// Set associates key with id. Returns ErrUniqueConflict if key is already
// owned by a different id.
func (u *UniqueIndex[K]) Set(key K, id string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if owner, ok := u.entries[key]; ok && owner != id {
		return ErrUniqueConflict
	}
	u.entries[key] = id
	return nil
}

// Remove drops the key's ownership entirely.
func (u *UniqueIndex[K]) Remove(key K) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.entries, key)
}

// Lookup returns the id owning key, if any.
func (u *UniqueIndex[K]) Lookup(key K) (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	id, ok := u.entries[key]
	return id, ok
}
