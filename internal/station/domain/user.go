package domain

// UserStatus is the activation state of a User.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// User bounds, mirrored from the reference implementation's model
// constants.
const (
	UserIdentitiesMin = 1
	UserIdentitiesMax = 10
	UserMaxGroups     = 25
	UserMaxNameLength = 50
)

// User represents a member of the station who may act as requester or
// approver. Identities are opaque external principals (e.g. public keys);
// the station never interprets their contents.
type User struct {
	ID                        ID         `json:"id"`
	Name                      string     `json:"name,omitempty"`
	Status                    UserStatus `json:"status"`
	Identities                []string   `json:"identities"`
	Groups                    []ID       `json:"groups"`
	LastModificationTimestamp int64      `json:"last_modification_timestamp"`
}

// IsActive reports whether the user may currently act within the station.
func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

// InGroup reports whether the user belongs to group.
func (u User) InGroup(group ID) bool {
	for _, g := range u.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// CallerPrivileges projects what the caller may do with a User record.
type CallerPrivileges struct {
	ID       ID   `json:"id"`
	CanEdit  bool `json:"can_edit"`
}

// Validate checks User's structural invariants. existsCheck is a hook that
// can be disabled in unit tests (§4.2 "mockable switch").
func (u User) Validate(existsCheck func(groupID ID) bool) error {
	if len(u.Identities) < UserIdentitiesMin {
		return ValidationErrorf("user", "identities", "at least %d identity required", UserIdentitiesMin)
	}
	if len(u.Identities) > UserIdentitiesMax {
		return ValidationErrorf("user", "identities", "at most %d identities allowed", UserIdentitiesMax)
	}
	for _, identity := range u.Identities {
		if identity == "" {
			return ValidationErrorf("user", "identities", "anonymous identity not allowed")
		}
	}
	if len(u.Groups) > UserMaxGroups {
		return ValidationErrorf("user", "groups", "at most %d groups allowed", UserMaxGroups)
	}
	if len(u.Name) > UserMaxNameLength {
		return ValidationErrorf("user", "name", "name exceeds %d characters", UserMaxNameLength)
	}
	if existsCheck != nil {
		for _, g := range u.Groups {
			if !existsCheck(g) {
				return ValidationErrorf("user", "groups", "group %s does not exist", g)
			}
		}
	}
	return nil
}

// UserGroup is a named collection of users, referenced by ID from
// permissions and policy specifiers.
type UserGroup struct {
	ID                        ID     `json:"id"`
	Name                      string `json:"name"`
	LastModificationTimestamp int64  `json:"last_modification_timestamp"`
}

// FoldName returns the case/diacritic-folded form of name used for the
// group's unique index key.
func FoldName(name string) string {
	return foldUnique(name)
}
