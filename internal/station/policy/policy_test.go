package policy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbit-station/station/internal/station/domain"
)

type fakeMembership struct {
	groups      map[domain.ID][]domain.ID
	allActive   []domain.ID
	allowListed bool
}

func (f fakeMembership) ActiveUsersInGroup(group domain.ID) []domain.ID { return f.groups[group] }
func (f fakeMembership) AllActiveUsers() []domain.ID                    { return f.allActive }
func (f fakeMembership) IsAllowListed(_ domain.Request, _, _ string) bool {
	return f.allowListed
}

func approval(id domain.ID, decision domain.ApprovalDecision) domain.Approval {
	return domain.Approval{ApproverID: id, Decision: decision}
}

func TestEvaluateAutoApprovedAndAutoRejected(t *testing.T) {
	m := fakeMembership{}
	req := domain.Request{}

	require.Equal(t, Approved, Evaluate(domain.Rule{Kind: domain.RuleAutoApproved}, req, m))
	require.Equal(t, Rejected, Evaluate(domain.Rule{Kind: domain.RuleAutoRejected}, req, m))
}

func TestEvaluateQuorumTwoOfTwo(t *testing.T) {
	u1, u2 := domain.NewID(), domain.NewID()
	group := domain.NewID()
	m := fakeMembership{groups: map[domain.ID][]domain.ID{group: {u1, u2}}}

	rule := domain.Rule{Kind: domain.RuleQuorum, Approvers: domain.GroupSpecifier(group), MinVotes: 2}

	req := domain.Request{Approvals: []domain.Approval{approval(u1, domain.DecisionApproved)}}
	require.Equal(t, Pending, Evaluate(rule, req, m))

	req.Approvals = append(req.Approvals, approval(u2, domain.DecisionApproved))
	require.Equal(t, Approved, Evaluate(rule, req, m))
}

func TestEvaluateQuorumRejectionByInsufficientEligible(t *testing.T) {
	u1, u2, u3 := domain.NewID(), domain.NewID(), domain.NewID()
	group := domain.NewID()
	m := fakeMembership{groups: map[domain.ID][]domain.ID{group: {u1, u2, u3}}}
	rule := domain.Rule{Kind: domain.RuleQuorum, Approvers: domain.GroupSpecifier(group), MinVotes: 3}

	req := domain.Request{Approvals: []domain.Approval{
		approval(u1, domain.DecisionApproved),
		approval(u2, domain.DecisionRejected),
		approval(u3, domain.DecisionRejected),
	}}
	require.Equal(t, Rejected, Evaluate(rule, req, m))
}

func TestEvaluateQuorumPercentageCeilArithmetic(t *testing.T) {
	admins := make([]domain.ID, 2)
	admins[0], admins[1] = domain.NewID(), domain.NewID()
	group := domain.NewID()
	m := fakeMembership{groups: map[domain.ID][]domain.ID{group: admins}}

	rule := domain.Rule{Kind: domain.RuleQuorumPercentage, Approvers: domain.GroupSpecifier(group), MinPercent: 51}

	// ceil(51*2/100) = ceil(1.02) = 2: one approval is not enough.
	req := domain.Request{Approvals: []domain.Approval{approval(admins[0], domain.DecisionApproved)}}
	require.Equal(t, Pending, Evaluate(rule, req, m))

	req.Approvals = append(req.Approvals, approval(admins[1], domain.DecisionApproved))
	require.Equal(t, Approved, Evaluate(rule, req, m))
}

func TestCeilPercentBoundaries(t *testing.T) {
	require.Equal(t, 0, ceilPercent(0, 10))
	require.Equal(t, 10, ceilPercent(100, 10))
	require.Equal(t, 2, ceilPercent(51, 2))
}

func TestEvaluateAllOfAndAnyOf(t *testing.T) {
	m := fakeMembership{}
	req := domain.Request{}

	allOf := domain.Rule{Kind: domain.RuleAllOf, Children: []domain.Rule{
		{Kind: domain.RuleAutoApproved},
		{Kind: domain.RuleAutoRejected},
	}}
	require.Equal(t, Rejected, Evaluate(allOf, req, m))

	anyOf := domain.Rule{Kind: domain.RuleAnyOf, Children: []domain.Rule{
		{Kind: domain.RuleAutoRejected},
		{Kind: domain.RuleAutoApproved},
	}}
	require.Equal(t, Approved, Evaluate(anyOf, req, m))
}

func TestEvaluateNotInvertsDecidedOutcomes(t *testing.T) {
	m := fakeMembership{}
	req := domain.Request{}

	child := domain.Rule{Kind: domain.RuleAutoApproved}
	not := domain.Rule{Kind: domain.RuleNot, Child: &child}
	require.Equal(t, Rejected, Evaluate(not, req, m))
}

func TestExpandDetectsNamedRuleCycle(t *testing.T) {
	a, b := domain.NewID(), domain.NewID()
	resolve := func(id domain.ID) (domain.Rule, error) {
		switch id {
		case a:
			return domain.Rule{Kind: domain.RuleNamedRule, NamedRuleID: b}, nil
		case b:
			return domain.Rule{Kind: domain.RuleNamedRule, NamedRuleID: a}, nil
		default:
			return domain.Rule{}, fmt.Errorf("unknown named rule %s", id)
		}
	}

	_, err := Expand(domain.Rule{Kind: domain.RuleNamedRule, NamedRuleID: a}, resolve)
	require.Error(t, err)
	var cycleErr *ErrCycle
	require.ErrorAs(t, err, &cycleErr)
}

func TestExpandResolvesNamedRuleToConcreteTree(t *testing.T) {
	id := domain.NewID()
	resolve := func(resolveID domain.ID) (domain.Rule, error) {
		require.Equal(t, id, resolveID)
		return domain.Rule{Kind: domain.RuleAutoApproved}, nil
	}

	expanded, err := Expand(domain.Rule{Kind: domain.RuleNamedRule, NamedRuleID: id}, resolve)
	require.NoError(t, err)
	require.Equal(t, domain.RuleAutoApproved, expanded.Kind)
}

func TestCheckNamedRuleCycleRejectsSelfReferenceThroughChain(t *testing.T) {
	a, b := domain.NewID(), domain.NewID()
	resolve := func(id domain.ID) (domain.Rule, error) {
		if id == b {
			return domain.Rule{Kind: domain.RuleNamedRule, NamedRuleID: a}, nil
		}
		return domain.Rule{}, fmt.Errorf("unknown named rule %s", id)
	}

	// Editing A to reference B, where B already references A, closes a
	// cycle (S6).
	err := CheckNamedRuleCycle(a, domain.Rule{Kind: domain.RuleNamedRule, NamedRuleID: b}, resolve)
	require.Error(t, err)
}

func TestCheckNamedRuleCycleAllowsAcyclicEdit(t *testing.T) {
	b := domain.NewID()
	resolve := func(id domain.ID) (domain.Rule, error) {
		return domain.Rule{Kind: domain.RuleAutoApproved}, nil
	}

	err := CheckNamedRuleCycle(domain.NewID(), domain.Rule{Kind: domain.RuleNamedRule, NamedRuleID: b}, resolve)
	require.NoError(t, err)
}

func TestEligibleApproversDedupesAcrossSpecifiers(t *testing.T) {
	shared := domain.NewID()
	groupA, groupB := domain.NewID(), domain.NewID()
	m := fakeMembership{groups: map[domain.ID][]domain.ID{
		groupA: {shared},
		groupB: {shared},
	}}

	rule := domain.Rule{Kind: domain.RuleAnyOf, Children: []domain.Rule{
		{Kind: domain.RuleQuorum, Approvers: domain.GroupSpecifier(groupA), MinVotes: 1},
		{Kind: domain.RuleQuorum, Approvers: domain.GroupSpecifier(groupB), MinVotes: 1},
	}}

	approvers := EligibleApprovers(rule, domain.NewID(), m)
	require.ElementsMatch(t, []domain.ID{shared}, approvers)
}
