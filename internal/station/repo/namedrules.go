package repo

import (
	"context"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/store"
)

// NamedRules is the repository of domain.NamedRule, with a unique index on
// the folded name (§3 "NamedRuleName unique index").
type NamedRules struct {
	repo   *store.Repository[domain.NamedRule]
	byName *store.UniqueIndex[string]
}

// NewNamedRules builds a NamedRules repository over backend.
func NewNamedRules(backend store.Backend) *NamedRules {
	n := &NamedRules{
		repo:   store.NewRepository[domain.NamedRule]("named_rules", backend, nil),
		byName: store.NewUniqueIndex[string](),
	}
	n.repo.AddObserver(n)
	return n
}

func (n *NamedRules) AfterInsert(_ context.Context, rule domain.NamedRule) {
	_ = n.byName.Set(domain.FoldName(rule.Name), rule.EntityKey())
}

func (n *NamedRules) AfterRemove(_ context.Context, rule domain.NamedRule) {
	n.byName.Remove(domain.FoldName(rule.Name))
}

// Rebuild replays every persisted NamedRule's folded name into byName,
// restoring unique-name enforcement against already-persisted rows after a
// restart.
func (n *NamedRules) Rebuild(ctx context.Context) error {
	all, err := n.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, rule := range all {
		_ = n.byName.Set(domain.FoldName(rule.Name), rule.EntityKey())
	}
	return nil
}

func (n *NamedRules) Get(ctx context.Context, id domain.ID) (domain.NamedRule, error) {
	return n.repo.Get(ctx, id.String())
}

// Insert rejects a NamedRule whose folded name collides with a different
// existing rule.
func (n *NamedRules) Insert(ctx context.Context, rule domain.NamedRule) error {
	if owner, ok := n.byName.Lookup(domain.FoldName(rule.Name)); ok && owner != rule.EntityKey() {
		return store.ErrUniqueConflict
	}
	return n.repo.Insert(ctx, rule)
}

func (n *NamedRules) Remove(ctx context.Context, id domain.ID) error {
	return n.repo.Remove(ctx, id.String())
}

func (n *NamedRules) List(ctx context.Context) ([]domain.NamedRule, error) {
	return n.repo.List(ctx)
}

// Exists reports whether id names a known NamedRule.
func (n *NamedRules) Exists(ctx context.Context, id domain.ID) bool {
	_, err := n.Get(ctx, id)
	return err == nil
}
