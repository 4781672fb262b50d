package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ErrUniqueConflict is returned when a unique index insert collides with an
// existing entity owning the same key (§8 invariant 6).
var ErrUniqueConflict = fmt.Errorf("store: unique index conflict")

// Entity is the minimal contract a Repository's type parameter must satisfy:
// every stored record carries its own string-keyed identity.
type Entity interface {
	EntityKey() string
}

// Observer is notified after a commit, in the order it was registered,
// mirroring the reference's observer discipline (§9 "observer discipline").
type Observer[T Entity] interface {
	AfterInsert(ctx context.Context, entity T)
	AfterRemove(ctx context.Context, entity T)
}

// Repository is a generic typed store over a Backend: JSON-encodes T under
// the family name given to NewRepository, and fans inserts/removals out to
// registered Observers after the primary write commits.
type Repository[T Entity] struct {
	family  string
	backend Backend
	cache   *Cache[T]

	mu        sync.Mutex
	observers []Observer[T]
}

// NewRepository builds a Repository storing entities of family in backend.
// cache may be nil to disable read caching.
func NewRepository[T Entity](family string, backend Backend, cache *Cache[T]) *Repository[T] {
	return &Repository[T]{family: family, backend: backend, cache: cache}
}

// AddObserver registers o to run after every future commit. Not safe to call
// concurrently with Insert/Remove.
func (r *Repository[T]) AddObserver(o Observer[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// Get loads the entity stored under id, or ErrNotFound.
func (r *Repository[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if r.cache != nil {
		if v, ok := r.cache.Get(id); ok {
			return v, nil
		}
	}
	raw, ok, err := r.backend.Load(ctx, r.family, id)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, ErrNotFound
	}
	var entity T
	if err := json.Unmarshal(raw, &entity); err != nil {
		return zero, fmt.Errorf("store: decode %s/%s: %w", r.family, id, err)
	}
	if r.cache != nil {
		r.cache.Put(id, entity)
	}
	return entity, nil
}

// Insert writes entity and runs observers in registration order.
func (r *Repository[T]) Insert(ctx context.Context, entity T) error {
	raw, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("store: encode %s/%s: %w", r.family, entity.EntityKey(), err)
	}
	if err := r.backend.Save(ctx, r.family, entity.EntityKey(), raw); err != nil {
		return err
	}
	if r.cache != nil {
		r.cache.Put(entity.EntityKey(), entity)
	}
	r.notifyInsert(ctx, entity)
	return nil
}

// Remove deletes the entity stored under id and runs observers in
// registration order. Remove is idempotent: removing a missing id is a no-op.
func (r *Repository[T]) Remove(ctx context.Context, id string) error {
	entity, err := r.Get(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	if err := r.backend.Delete(ctx, r.family, id); err != nil {
		return err
	}
	if r.cache != nil {
		r.cache.Evict(id)
	}
	r.notifyRemove(ctx, entity)
	return nil
}

// List returns every stored entity, ordered by key.
func (r *Repository[T]) List(ctx context.Context) ([]T, error) {
	raw, err := r.backend.List(ctx, r.family)
	if err != nil {
		return nil, err
	}
	keys := sortedKeys(raw)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		var entity T
		if err := json.Unmarshal(raw[k], &entity); err != nil {
			return nil, fmt.Errorf("store: decode %s/%s: %w", r.family, k, err)
		}
		out = append(out, entity)
	}
	return out, nil
}

func (r *Repository[T]) notifyInsert(ctx context.Context, entity T) {
	r.mu.Lock()
	observers := make([]Observer[T], len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()
	for _, o := range observers {
		o.AfterInsert(ctx, entity)
	}
}

func (r *Repository[T]) notifyRemove(ctx context.Context, entity T) {
	r.mu.Lock()
	observers := make([]Observer[T], len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()
	for _, o := range observers {
		o.AfterRemove(ctx, entity)
	}
}
