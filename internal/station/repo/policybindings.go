package repo

import (
	"context"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/store"
)

// PolicyBindings is the repository of domain.PolicyBinding, indexed by
// operation type so request creation can resolve the applicable policy
// without scanning every binding (§4.4).
type PolicyBindings struct {
	repo       *store.Repository[domain.PolicyBinding]
	byOperation *store.Index[domain.RequestOperationType]
}

// NewPolicyBindings builds a PolicyBindings repository over backend.
func NewPolicyBindings(backend store.Backend) *PolicyBindings {
	p := &PolicyBindings{
		repo:        store.NewRepository[domain.PolicyBinding]("policy_bindings", backend, nil),
		byOperation: store.NewIndex[domain.RequestOperationType](),
	}
	p.repo.AddObserver(p)
	return p
}

func (p *PolicyBindings) AfterInsert(_ context.Context, binding domain.PolicyBinding) {
	p.byOperation.Add(binding.Specifier.OperationType, binding.EntityKey())
}

func (p *PolicyBindings) AfterRemove(_ context.Context, binding domain.PolicyBinding) {
	p.byOperation.Remove(binding.Specifier.OperationType, binding.EntityKey())
}

// Rebuild replays every persisted PolicyBinding into byOperation, restoring
// ForOperation lookups after a restart.
func (p *PolicyBindings) Rebuild(ctx context.Context) error {
	all, err := p.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, binding := range all {
		p.byOperation.Add(binding.Specifier.OperationType, binding.EntityKey())
	}
	return nil
}

func (p *PolicyBindings) Get(ctx context.Context, id domain.ID) (domain.PolicyBinding, error) {
	return p.repo.Get(ctx, id.String())
}

func (p *PolicyBindings) Insert(ctx context.Context, binding domain.PolicyBinding) error {
	return p.repo.Insert(ctx, binding)
}

func (p *PolicyBindings) Remove(ctx context.Context, id domain.ID) error {
	return p.repo.Remove(ctx, id.String())
}

func (p *PolicyBindings) List(ctx context.Context) ([]domain.PolicyBinding, error) {
	return p.repo.List(ctx)
}

// Exists reports whether id names a known PolicyBinding, consulted by
// cross-reference checks (e.g. domain.Account's *RequestPolicyID fields).
func (p *PolicyBindings) Exists(ctx context.Context, id domain.ID) bool {
	_, err := p.Get(ctx, id)
	return err == nil
}

// ForOperation returns every binding whose specifier names opType, the
// candidate set narrowed further by RequestSpecifier.Matches on target ID.
func (p *PolicyBindings) ForOperation(ctx context.Context, opType domain.RequestOperationType) ([]domain.PolicyBinding, error) {
	ids := p.byOperation.Lookup(opType)
	out := make([]domain.PolicyBinding, 0, len(ids))
	for _, id := range ids {
		binding, err := p.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, binding)
	}
	return out, nil
}
