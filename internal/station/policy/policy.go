// Package policy evaluates a domain.Rule tree against a domain.Request's
// recorded approvals to a three-valued outcome (§4.4).
package policy

import (
	"fmt"

	"github.com/orbit-station/station/internal/station/domain"
)

// Outcome is the three-valued result of evaluating a rule against a
// Request's current approvals.
type Outcome string

const (
	Approved Outcome = "approved"
	Rejected Outcome = "rejected"
	Pending  Outcome = "pending"
)

// Membership resolves the live facts a rule needs beyond the request
// itself: group membership for specifier expansion, and AddressBook
// contents for AllowListed rules. Implementations are backed by
// internal/station/repo at call sites; policy stays free of any repo
// import so it can be unit tested against plain fakes.
type Membership interface {
	// ActiveUsersInGroup returns the active members of group.
	ActiveUsersInGroup(group domain.ID) []domain.ID
	// AllActiveUsers returns every active user in the station, used to
	// expand SpecifierAny.
	AllActiveUsers() []domain.ID
	// IsAllowListed reports whether req's destination address is a known
	// AddressBook entry, optionally requiring metadata k=v (metadataKey
	// empty means no metadata constraint).
	IsAllowListed(req domain.Request, metadataKey, metadataValue string) bool
}

// ResolveNamedRule looks up a NamedRule's expanded tree by ID, used only
// while expanding a snapshot (live PolicyBinding trees, never evaluation of
// an already-captured PolicySnapshot — see Expand).
type ResolveNamedRule func(id domain.ID) (domain.Rule, error)

// ErrCycle is returned by Expand when a NamedRule reference closes a cycle.
type ErrCycle struct {
	NamedRuleID domain.ID
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("policy: named rule %s participates in a cycle", e.NamedRuleID)
}

// Expand resolves every NamedRule reference in rule into its underlying
// tree, recursively, producing a closed tree with no NamedRule nodes left
// (§4.4 "dereferenced at snapshot construction time only"; §9 "cycle
// detection is a depth-first traversal of NamedRule edges").
func Expand(rule domain.Rule, resolve ResolveNamedRule) (domain.Rule, error) {
	return expand(rule, resolve, map[domain.ID]bool{})
}

func expand(rule domain.Rule, resolve ResolveNamedRule, visiting map[domain.ID]bool) (domain.Rule, error) {
	switch rule.Kind {
	case domain.RuleNamedRule:
		if visiting[rule.NamedRuleID] {
			return domain.Rule{}, &ErrCycle{NamedRuleID: rule.NamedRuleID}
		}
		visiting[rule.NamedRuleID] = true
		inner, err := resolve(rule.NamedRuleID)
		if err != nil {
			return domain.Rule{}, err
		}
		expanded, err := expand(inner, resolve, visiting)
		delete(visiting, rule.NamedRuleID)
		return expanded, err
	case domain.RuleAllOf, domain.RuleAnyOf:
		children := make([]domain.Rule, len(rule.Children))
		for i, child := range rule.Children {
			expanded, err := expand(child, resolve, visiting)
			if err != nil {
				return domain.Rule{}, err
			}
			children[i] = expanded
		}
		rule.Children = children
		return rule, nil
	case domain.RuleNot:
		if rule.Child == nil {
			return rule, nil
		}
		expanded, err := expand(*rule.Child, resolve, visiting)
		if err != nil {
			return domain.Rule{}, err
		}
		rule.Child = &expanded
		return rule, nil
	default:
		return rule, nil
	}
}

// CheckNamedRuleCycle validates that assigning newRule as the body of the
// NamedRule identified by candidateID would not close a cycle through any
// NamedRule reference it contains (§9, §8 scenario S6: "attempting to edit
// NamedRule A so that A references B which references A fails at edit
// time"). Existing snapshots that already embedded the old body are
// unaffected, since snapshots hold fully expanded trees, never live
// references.
func CheckNamedRuleCycle(candidateID domain.ID, newRule domain.Rule, resolve ResolveNamedRule) error {
	_, err := expand(newRule, resolve, map[domain.ID]bool{candidateID: true})
	return err
}

// EligibleApprovers walks rule (already expanded, no NamedRule nodes) and
// returns the union, deduplicated, of every UserSpecifier's resolved user
// set — the EligibleApprovers a PolicySnapshot records at creation time.
func EligibleApprovers(rule domain.Rule, requester domain.ID, m Membership) []domain.ID {
	seen := make(map[domain.ID]bool)
	collectApprovers(rule, requester, m, seen)
	out := make([]domain.ID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

func collectApprovers(rule domain.Rule, requester domain.ID, m Membership, seen map[domain.ID]bool) {
	switch rule.Kind {
	case domain.RuleQuorum, domain.RuleQuorumPercentage:
		for _, id := range expandSpecifier(rule.Approvers, requester, m) {
			seen[id] = true
		}
	case domain.RuleAllOf, domain.RuleAnyOf:
		for _, child := range rule.Children {
			collectApprovers(child, requester, m, seen)
		}
	case domain.RuleNot:
		if rule.Child != nil {
			collectApprovers(*rule.Child, requester, m, seen)
		}
	}
}

func expandSpecifier(spec domain.UserSpecifier, requester domain.ID, m Membership) []domain.ID {
	switch spec.Kind {
	case domain.SpecifierAny:
		return m.AllActiveUsers()
	case domain.SpecifierGroup:
		return m.ActiveUsersInGroup(spec.Group)
	case domain.SpecifierUsers:
		return spec.Users
	case domain.SpecifierOwner:
		return []domain.ID{requester}
	default:
		return nil
	}
}

// Evaluate evaluates an already-expanded rule tree against the request's
// current approvals, per §4.4's per-kind semantics. rule is typically
// req.PolicySnapshot.Rule — the evaluator never reads live policies.
func Evaluate(rule domain.Rule, req domain.Request, m Membership) Outcome {
	switch rule.Kind {
	case domain.RuleAutoApproved:
		return Approved
	case domain.RuleAutoRejected:
		return Rejected
	case domain.RuleQuorum:
		return evaluateQuorum(expandSpecifier(rule.Approvers, req.RequestedBy, m), rule.MinVotes, req)
	case domain.RuleQuorumPercentage:
		eligible := expandSpecifier(rule.Approvers, req.RequestedBy, m)
		min := ceilPercent(rule.MinPercent, len(eligible))
		return evaluateQuorum(eligible, min, req)
	case domain.RuleAllowListed:
		if m.IsAllowListed(req, "", "") {
			return Approved
		}
		return Rejected
	case domain.RuleAllowListedByMeta:
		if m.IsAllowListed(req, rule.MetadataKey, rule.MetadataValue) {
			return Approved
		}
		return Rejected
	case domain.RuleAllOf:
		return evaluateAllOf(rule.Children, req, m)
	case domain.RuleAnyOf:
		return evaluateAnyOf(rule.Children, req, m)
	case domain.RuleNot:
		if rule.Child == nil {
			return Pending
		}
		switch Evaluate(*rule.Child, req, m) {
		case Approved:
			return Rejected
		case Rejected:
			return Approved
		default:
			return Pending
		}
	default:
		return Pending
	}
}

// ceilPercent computes ⌈p·n/100⌉ via integer arithmetic, never floating
// point (§4.4, §9 "avoids any FP drift").
func ceilPercent(p, n int) int {
	return (p*n + 99) / 100
}

func evaluateQuorum(eligible []domain.ID, min int, req domain.Request) Outcome {
	eligibleSet := make(map[domain.ID]bool, len(eligible))
	for _, id := range eligible {
		eligibleSet[id] = true
	}
	var approved, rejected int
	for _, a := range req.Approvals {
		if !eligibleSet[a.ApproverID] {
			continue
		}
		switch a.Decision {
		case domain.DecisionApproved:
			approved++
		case domain.DecisionRejected:
			rejected++
		}
	}
	undecided := len(eligible) - approved - rejected
	if approved >= min {
		return Approved
	}
	if approved+undecided < min {
		return Rejected
	}
	return Pending
}

func evaluateAllOf(children []domain.Rule, req domain.Request, m Membership) Outcome {
	if len(children) == 0 {
		return Approved
	}
	sawPending := false
	for _, child := range children {
		switch Evaluate(child, req, m) {
		case Rejected:
			return Rejected
		case Pending:
			sawPending = true
		}
	}
	if sawPending {
		return Pending
	}
	return Approved
}

func evaluateAnyOf(children []domain.Rule, req domain.Request, m Membership) Outcome {
	if len(children) == 0 {
		return Rejected
	}
	sawPending := false
	for _, child := range children {
		switch Evaluate(child, req, m) {
		case Approved:
			return Approved
		case Pending:
			sawPending = true
		}
	}
	if sawPending {
		return Pending
	}
	return Rejected
}
