package authz

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbit-station/station/internal/station/domain"
)

func permissionWithAllow(allow domain.Allow) domain.Permission {
	return domain.Permission{
		Resource: domain.Resource{Kind: domain.ResourceAccount, Action: domain.ActionRead},
		Allow:    allow,
	}
}

func TestIsAllowedPublicAllowsAnonymous(t *testing.T) {
	p := permissionWithAllow(domain.Public())
	require.True(t, IsAllowed(p, Anonymous()))
}

func TestIsAllowedAuthenticatedRequiresActiveUser(t *testing.T) {
	p := permissionWithAllow(domain.Authenticated())

	require.False(t, IsAllowed(p, Anonymous()))

	inactive := domain.User{ID: domain.NewID(), Status: domain.UserStatusInactive}
	require.False(t, IsAllowed(p, Authenticated(inactive)))

	active := domain.User{ID: domain.NewID(), Status: domain.UserStatusActive}
	require.True(t, IsAllowed(p, Authenticated(active)))
}

func TestIsAllowedRestrictedChecksUsersAndGroups(t *testing.T) {
	allowedUser := domain.NewID()
	allowedGroup := domain.NewID()
	p := permissionWithAllow(domain.Restricted([]domain.ID{allowedUser}, []domain.ID{allowedGroup}))

	named := domain.User{ID: allowedUser, Status: domain.UserStatusActive}
	require.True(t, IsAllowed(p, Authenticated(named)))

	viaGroup := domain.User{ID: domain.NewID(), Status: domain.UserStatusActive, Groups: []domain.ID{allowedGroup}}
	require.True(t, IsAllowed(p, Authenticated(viaGroup)))

	stranger := domain.User{ID: domain.NewID(), Status: domain.UserStatusActive}
	require.False(t, IsAllowed(p, Authenticated(stranger)))
}
