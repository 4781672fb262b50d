package repo

import (
	"context"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/store"
)

// Permissions is the repository of domain.Permission, keyed uniquely by its
// Resource (§3).
type Permissions struct {
	repo *store.Repository[domain.Permission]
}

// NewPermissions builds a Permissions repository over backend.
func NewPermissions(backend store.Backend) *Permissions {
	return &Permissions{repo: store.NewRepository[domain.Permission]("permissions", backend, nil)}
}

// Get resolves the Permission bound to resource, if any.
func (p *Permissions) Get(ctx context.Context, resource domain.Resource) (domain.Permission, error) {
	return p.repo.Get(ctx, resource.Key())
}

// Set writes (or replaces) the Permission for its Resource.
func (p *Permissions) Set(ctx context.Context, permission domain.Permission) error {
	return p.repo.Insert(ctx, permission)
}

func (p *Permissions) Remove(ctx context.Context, resource domain.Resource) error {
	return p.repo.Remove(ctx, resource.Key())
}

func (p *Permissions) List(ctx context.Context) ([]domain.Permission, error) {
	return p.repo.List(ctx)
}
