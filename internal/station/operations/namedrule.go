package operations

import (
	"context"
	"fmt"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/policy"
	"github.com/orbit-station/station/internal/station/repo"
)

// NamedRules manages domain.NamedRule entities directly, outside the
// request-approval pipeline. No RequestOperationType names a NamedRule
// CRUD operation — the roster only ever mentions AddRequestPolicy,
// EditRequestPolicy and RemoveRequestPolicy acting on PolicyBindings — so a
// NamedRule's lifecycle is an administrative concern of whoever already
// holds ManageSystemInfo-equivalent authority, not something individually
// voted on. See DESIGN.md's "NamedRule mutation is administrative, not
// request-governed" entry.
type NamedRules struct {
	rules *repo.NamedRules
}

// NewNamedRules builds a NamedRules service over the given repository.
func NewNamedRules(rules *repo.NamedRules) *NamedRules {
	return &NamedRules{rules: rules}
}

func (s *NamedRules) resolver(ctx context.Context) policy.ResolveNamedRule {
	return func(id domain.ID) (domain.Rule, error) {
		rule, err := s.rules.Get(ctx, id)
		if err != nil {
			return domain.Rule{}, fmt.Errorf("operations: resolve named rule %s: %w", id, err)
		}
		return rule.Rule, nil
	}
}

// Create persists a brand new NamedRule, rejecting a body whose NamedRule
// references are unresolvable or cyclic.
func (s *NamedRules) Create(ctx context.Context, name, description string, rule domain.Rule, now int64) (domain.NamedRule, error) {
	if _, err := policy.Expand(rule, s.resolver(ctx)); err != nil {
		return domain.NamedRule{}, err
	}
	nr := domain.NamedRule{
		ID:                        domain.NewID(),
		Name:                      name,
		Description:               description,
		Rule:                      rule,
		LastModificationTimestamp: now,
	}
	if err := s.rules.Insert(ctx, nr); err != nil {
		return domain.NamedRule{}, err
	}
	return nr, nil
}

// Edit replaces id's name/description/body, rejecting an edit that would
// close a NamedRule reference cycle through id itself (§8 scenario S6:
// "editing NamedRule A so that A references B which references A fails at
// edit time").
func (s *NamedRules) Edit(ctx context.Context, id domain.ID, name, description string, rule domain.Rule, now int64) (domain.NamedRule, error) {
	existing, err := s.rules.Get(ctx, id)
	if err != nil {
		return domain.NamedRule{}, err
	}
	if err := policy.CheckNamedRuleCycle(id, rule, s.resolver(ctx)); err != nil {
		return domain.NamedRule{}, err
	}
	existing.Name = name
	existing.Description = description
	existing.Rule = rule
	existing.LastModificationTimestamp = now
	if err := s.rules.Insert(ctx, existing); err != nil {
		return domain.NamedRule{}, err
	}
	return existing, nil
}

// Remove deletes id. Callers are responsible for refusing removal while any
// live PolicyBinding still references it; the repository layer has no
// reverse index from NamedRule to referencing bindings.
func (s *NamedRules) Remove(ctx context.Context, id domain.ID) error {
	return s.rules.Remove(ctx, id)
}
