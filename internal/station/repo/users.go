// Package repo wires internal/station/domain entities to
// internal/station/store, declaring per-entity secondary and unique
// indexes per spec.md §4.1.
package repo

import (
	"context"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/store"
)

// Users is the repository of domain.User, indexed by identity so the
// authorization layer can resolve a caller's principal to a User in O(1).
type Users struct {
	repo       *store.Repository[domain.User]
	byIdentity *store.Index[string]
}

// NewUsers builds a Users repository over backend, with an optional bounded
// read cache (pass 0 to disable).
func NewUsers(backend store.Backend, cacheCapacity int) *Users {
	var cache *store.Cache[domain.User]
	if cacheCapacity > 0 {
		cache = store.NewCache[domain.User](cacheCapacity)
	}
	u := &Users{
		repo:       store.NewRepository[domain.User]("users", backend, cache),
		byIdentity: store.NewIndex[string](),
	}
	u.repo.AddObserver(u)
	return u
}

func (u *Users) AfterInsert(_ context.Context, user domain.User) {
	for _, identity := range user.Identities {
		u.byIdentity.Add(identity, user.EntityKey())
	}
}

func (u *Users) AfterRemove(_ context.Context, user domain.User) {
	for _, identity := range user.Identities {
		u.byIdentity.Remove(identity, user.EntityKey())
	}
}

// Rebuild replays every persisted User's identities into byIdentity,
// restoring ByIdentity lookups after a restart.
func (u *Users) Rebuild(ctx context.Context) error {
	all, err := u.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, user := range all {
		for _, identity := range user.Identities {
			u.byIdentity.Add(identity, user.EntityKey())
		}
	}
	return nil
}

func (u *Users) Get(ctx context.Context, id domain.ID) (domain.User, error) {
	return u.repo.Get(ctx, id.String())
}

func (u *Users) Insert(ctx context.Context, user domain.User) error {
	return u.repo.Insert(ctx, user)
}

func (u *Users) Remove(ctx context.Context, id domain.ID) error {
	return u.repo.Remove(ctx, id.String())
}

func (u *Users) List(ctx context.Context) ([]domain.User, error) {
	return u.repo.List(ctx)
}

// ByIdentity resolves the User owning identity, if any.
func (u *Users) ByIdentity(ctx context.Context, identity string) (domain.User, bool, error) {
	ids := u.byIdentity.Lookup(identity)
	if len(ids) == 0 {
		return domain.User{}, false, nil
	}
	user, err := u.repo.Get(ctx, ids[0])
	if err != nil {
		return domain.User{}, false, err
	}
	return user, true, nil
}

// Exists reports whether id names a known User, used by cross-reference
// validation hooks (domain.Account.Validate-style existsCheck callbacks).
func (u *Users) Exists(ctx context.Context, id domain.ID) bool {
	_, err := u.Get(ctx, id)
	return err == nil
}

// AddObserver registers o to run after every future User commit (e.g.
// internal/station/dr's UserObserver), in addition to Users's own identity
// indexing. Not safe to call concurrently with writes.
func (u *Users) AddObserver(o store.Observer[domain.User]) {
	u.repo.AddObserver(o)
}
