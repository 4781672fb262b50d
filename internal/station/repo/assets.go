package repo

import (
	"context"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/store"
)

// Assets is the repository of domain.Asset, the station's supported-asset
// list (§9 "Global state").
type Assets struct {
	repo *store.Repository[domain.Asset]
}

// NewAssets builds an Assets repository over backend.
func NewAssets(backend store.Backend) *Assets {
	return &Assets{repo: store.NewRepository[domain.Asset]("assets", backend, nil)}
}

func (a *Assets) Get(ctx context.Context, id domain.ID) (domain.Asset, error) {
	return a.repo.Get(ctx, id.String())
}

func (a *Assets) Insert(ctx context.Context, asset domain.Asset) error {
	return a.repo.Insert(ctx, asset)
}

func (a *Assets) Remove(ctx context.Context, id domain.ID) error {
	return a.repo.Remove(ctx, id.String())
}

func (a *Assets) List(ctx context.Context) ([]domain.Asset, error) {
	return a.repo.List(ctx)
}
