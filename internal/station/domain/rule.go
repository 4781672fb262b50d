package domain

// RuleKind tags the variant of a Rule node (§3 "Policy rule").
type RuleKind string

const (
	RuleAutoApproved         RuleKind = "auto_approved"
	RuleAutoRejected         RuleKind = "auto_rejected"
	RuleQuorum               RuleKind = "quorum"
	RuleQuorumPercentage     RuleKind = "quorum_percentage"
	RuleAllowListed          RuleKind = "allow_listed"
	RuleAllowListedByMeta    RuleKind = "allow_listed_by_metadata"
	RuleAllOf                RuleKind = "all_of"
	RuleAnyOf                RuleKind = "any_of"
	RuleNot                  RuleKind = "not"
	RuleNamedRule            RuleKind = "named_rule"
)

// SpecifierKind tags how a UserSpecifier resolves to a set of user IDs.
type SpecifierKind string

const (
	SpecifierAny   SpecifierKind = "any"
	SpecifierGroup SpecifierKind = "group"
	SpecifierUsers SpecifierKind = "users"
	SpecifierOwner SpecifierKind = "owner"
)

// UserSpecifier names a set of users eligible to approve a request. It is
// expanded to a concrete ID set at snapshot-construction time (§4.4
// "NamedRule... dereferenced at snapshot construction time only" applies
// symmetrically to specifiers).
type UserSpecifier struct {
	Kind  SpecifierKind `json:"kind"`
	Group ID            `json:"group,omitempty"`
	Users []ID          `json:"users,omitempty"`
}

// AnySpecifier matches every active user in the station.
func AnySpecifier() UserSpecifier { return UserSpecifier{Kind: SpecifierAny} }

// GroupSpecifier matches every active member of group.
func GroupSpecifier(group ID) UserSpecifier {
	return UserSpecifier{Kind: SpecifierGroup, Group: group}
}

// UsersSpecifier matches exactly the given user IDs.
func UsersSpecifier(users ...ID) UserSpecifier {
	return UserSpecifier{Kind: SpecifierUsers, Users: users}
}

// OwnerSpecifier matches the request's own requester.
func OwnerSpecifier() UserSpecifier { return UserSpecifier{Kind: SpecifierOwner} }

// Rule is a node in the recursive policy rule tree (§3, §4.4). Exactly the
// fields relevant to Kind are populated; this mirrors the reference's
// length-prefixed tagged-variant wire encoding via Go's discriminated
// encoding/json struct instead of a sum type, since Go has none.
type Rule struct {
	Kind RuleKind `json:"kind"`

	// Quorum / QuorumPercentage
	Approvers UserSpecifier `json:"approvers"`
	MinVotes  int           `json:"min_votes,omitempty"`
	MinPercent int          `json:"min_percent,omitempty"`

	// AllowListedByMetadata
	MetadataKey   string `json:"metadata_key,omitempty"`
	MetadataValue string `json:"metadata_value,omitempty"`

	// AllOf / AnyOf
	Children []Rule `json:"children,omitempty"`

	// Not
	Child *Rule `json:"child,omitempty"`

	// NamedRule
	NamedRuleID ID `json:"named_rule_id,omitempty"`
}

// NamedRule is a reusable rule stored once and referenced from other rule
// trees via Rule{Kind: RuleNamedRule}. Recovered from the reference's
// repositories/named_rule.rs — the distilled spec names the `NamedRule(id)`
// variant but never the owning entity.
type NamedRule struct {
	ID                        ID     `json:"id"`
	Name                      string `json:"name"`
	Rule                      Rule   `json:"rule"`
	Description               string `json:"description,omitempty"`
	LastModificationTimestamp int64  `json:"last_modification_timestamp"`
}

// PolicyBinding attaches a Rule to the requests matching a Specifier,
// i.e. an operation kind and optionally specific target IDs.
type PolicyBinding struct {
	ID                        ID                   `json:"id"`
	Specifier                 RequestSpecifier     `json:"specifier"`
	Rule                      Rule                 `json:"rule"`
	LastModificationTimestamp int64                `json:"last_modification_timestamp"`
}

// RequestSpecifier selects which requests a PolicyBinding applies to: an
// operation type and, optionally, specific target resource IDs (e.g. a
// particular account for Transfer policies). An empty TargetIDs matches
// every request of OperationType.
type RequestSpecifier struct {
	OperationType RequestOperationType `json:"operation_type"`
	TargetIDs     []ID                 `json:"target_ids,omitempty"`
}

// Matches reports whether the binding's specifier applies to a request of
// opType touching targetID (targetID is the zero ID when the operation has
// no single natural target).
func (s RequestSpecifier) Matches(opType RequestOperationType, targetID ID) bool {
	if s.OperationType != opType {
		return false
	}
	if len(s.TargetIDs) == 0 {
		return true
	}
	for _, id := range s.TargetIDs {
		if id == targetID {
			return true
		}
	}
	return false
}
