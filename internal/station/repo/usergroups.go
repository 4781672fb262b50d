package repo

import (
	"context"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/store"
)

// UserGroups is the repository of domain.UserGroup, with a unique index on
// the folded group name (§3 "UserGroupName unique index").
type UserGroups struct {
	repo   *store.Repository[domain.UserGroup]
	byName *store.UniqueIndex[string]
}

// NewUserGroups builds a UserGroups repository over backend.
func NewUserGroups(backend store.Backend) *UserGroups {
	g := &UserGroups{
		repo:   store.NewRepository[domain.UserGroup]("user_groups", backend, nil),
		byName: store.NewUniqueIndex[string](),
	}
	g.repo.AddObserver(g)
	return g
}

func (g *UserGroups) AfterInsert(_ context.Context, group domain.UserGroup) {
	_ = g.byName.Set(domain.FoldName(group.Name), group.EntityKey())
}

func (g *UserGroups) AfterRemove(_ context.Context, group domain.UserGroup) {
	g.byName.Remove(domain.FoldName(group.Name))
}

// Rebuild replays every persisted UserGroup's folded name into byName,
// restoring unique-name enforcement against already-persisted rows after a
// restart.
func (g *UserGroups) Rebuild(ctx context.Context) error {
	all, err := g.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, group := range all {
		_ = g.byName.Set(domain.FoldName(group.Name), group.EntityKey())
	}
	return nil
}

func (g *UserGroups) Get(ctx context.Context, id domain.ID) (domain.UserGroup, error) {
	return g.repo.Get(ctx, id.String())
}

// Insert rejects a group whose folded name collides with a different
// existing group, before writing to the backing store.
func (g *UserGroups) Insert(ctx context.Context, group domain.UserGroup) error {
	if owner, ok := g.byName.Lookup(domain.FoldName(group.Name)); ok && owner != group.EntityKey() {
		return store.ErrUniqueConflict
	}
	return g.repo.Insert(ctx, group)
}

func (g *UserGroups) Remove(ctx context.Context, id domain.ID) error {
	return g.repo.Remove(ctx, id.String())
}

func (g *UserGroups) List(ctx context.Context) ([]domain.UserGroup, error) {
	return g.repo.List(ctx)
}

// Exists reports whether id names a known UserGroup.
func (g *UserGroups) Exists(ctx context.Context, id domain.ID) bool {
	_, err := g.Get(ctx, id)
	return err == nil
}

// ByName resolves the group owning the folded name, if any.
func (g *UserGroups) ByName(ctx context.Context, name string) (domain.UserGroup, bool, error) {
	id, ok := g.byName.Lookup(domain.FoldName(name))
	if !ok {
		return domain.UserGroup{}, false, nil
	}
	parsed, err := domain.ParseID(id)
	if err != nil {
		return domain.UserGroup{}, false, err
	}
	group, err := g.Get(ctx, parsed)
	if err != nil {
		return domain.UserGroup{}, false, err
	}
	return group, true, nil
}
