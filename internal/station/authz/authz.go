// Package authz implements the station's permission check: given a caller
// and the Permission bound to a Resource, decide whether the caller may
// proceed (§4.3).
package authz

import "github.com/orbit-station/station/internal/station/domain"

// Caller is the acting principal evaluated against a Permission. An unset
// (zero) User with IsAnonymous true represents an unauthenticated caller.
type Caller struct {
	User        domain.User
	IsAnonymous bool
}

// Anonymous builds a Caller representing an unauthenticated request.
func Anonymous() Caller { return Caller{IsAnonymous: true} }

// Authenticated builds a Caller acting as user.
func Authenticated(user domain.User) Caller { return Caller{User: user} }

// IsAllowed decides whether caller may perform the action described by
// permission, mirroring the reference's Permission::is_allowed precisely:
//
//  1. Public scope always allows, even anonymous callers.
//  2. Every other scope requires an authenticated, active caller.
//  3. Authenticated scope then allows unconditionally.
//  4. Restricted scope allows only if caller is named directly in Users, or
//     belongs to one of UserGroups.
func IsAllowed(permission domain.Permission, caller Caller) bool {
	if permission.Allow.Scope == domain.ScopePublic {
		return true
	}
	if caller.IsAnonymous || !caller.User.IsActive() {
		return false
	}
	if permission.Allow.Scope == domain.ScopeAuthenticated {
		return true
	}
	for _, id := range permission.Allow.Users {
		if id == caller.User.ID {
			return true
		}
	}
	for _, group := range permission.Allow.UserGroups {
		if caller.User.InGroup(group) {
			return true
		}
	}
	return false
}
