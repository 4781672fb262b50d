package repo

import (
	"context"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/store"
)

// Accounts is the repository of domain.Account.
type Accounts struct {
	repo *store.Repository[domain.Account]
}

// NewAccounts builds an Accounts repository over backend with a bounded
// read cache (0 disables it).
func NewAccounts(backend store.Backend, cacheCapacity int) *Accounts {
	var cache *store.Cache[domain.Account]
	if cacheCapacity > 0 {
		cache = store.NewCache[domain.Account](cacheCapacity)
	}
	return &Accounts{repo: store.NewRepository[domain.Account]("accounts", backend, cache)}
}

func (a *Accounts) Get(ctx context.Context, id domain.ID) (domain.Account, error) {
	return a.repo.Get(ctx, id.String())
}

func (a *Accounts) Insert(ctx context.Context, account domain.Account) error {
	return a.repo.Insert(ctx, account)
}

func (a *Accounts) Remove(ctx context.Context, id domain.ID) error {
	return a.repo.Remove(ctx, id.String())
}

func (a *Accounts) List(ctx context.Context) ([]domain.Account, error) {
	return a.repo.List(ctx)
}

// Exists reports whether id names a known Account.
func (a *Accounts) Exists(ctx context.Context, id domain.ID) bool {
	_, err := a.Get(ctx, id)
	return err == nil
}

// AddObserver registers o to run after every future Account commit (e.g.
// internal/station/dr's AccountObserver). Not safe to call concurrently
// with writes.
func (a *Accounts) AddObserver(o store.Observer[domain.Account]) {
	a.repo.AddObserver(o)
}
