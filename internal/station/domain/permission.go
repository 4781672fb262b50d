package domain

// AuthScope classifies who a Permission's Allow applies to, mirrored from
// the reference's AuthScope enum (default Restricted).
type AuthScope string

const (
	ScopePublic        AuthScope = "public"
	ScopeAuthenticated AuthScope = "authenticated"
	ScopeRestricted    AuthScope = "restricted"
)

// Allow is the allow-list portion of a Permission.
type Allow struct {
	Scope      AuthScope `json:"auth_scope"`
	Users      []ID      `json:"users,omitempty"`
	UserGroups []ID      `json:"user_groups,omitempty"`
}

// Public builds a Public-scope Allow.
func Public() Allow { return Allow{Scope: ScopePublic} }

// Authenticated builds an Authenticated-scope Allow.
func Authenticated() Allow { return Allow{Scope: ScopeAuthenticated} }

// Restricted builds a Restricted-scope Allow over the given users/groups.
func Restricted(users, groups []ID) Allow {
	return Allow{Scope: ScopeRestricted, Users: users, UserGroups: groups}
}

// Permission binds an Allow to a Resource. Keyed uniquely by Resource (§3).
type Permission struct {
	Resource Resource `json:"resource"`
	Allow    Allow    `json:"allow"`
}
