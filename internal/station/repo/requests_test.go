package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/store"
)

func newRequest(requester domain.ID, status domain.RequestStatusKind) domain.Request {
	return domain.Request{
		ID:          domain.NewID(),
		RequestedBy: requester,
		Status:      domain.RequestStatus{Kind: status},
		Operation:   domain.Operation{Type: domain.OperationTransfer},
	}
}

func TestRequestsIndexByStatusAndRequester(t *testing.T) {
	ctx := context.Background()
	repo := NewRequests(store.NewMemoryBackend())

	requester := domain.NewID()
	r1 := newRequest(requester, domain.RequestStatusCreated)
	r2 := newRequest(requester, domain.RequestStatusApproved)

	require.NoError(t, repo.Upsert(ctx, r1))
	require.NoError(t, repo.Upsert(ctx, r2))

	byRequester, err := repo.ByRequester(ctx, requester)
	require.NoError(t, err)
	require.Len(t, byRequester, 2)

	created, err := repo.ByStatus(ctx, domain.RequestStatusCreated)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, r1.ID, created[0].ID)
}

func TestRequestsUpsertReindexesOnStatusChange(t *testing.T) {
	ctx := context.Background()
	repo := NewRequests(store.NewMemoryBackend())

	req := newRequest(domain.NewID(), domain.RequestStatusCreated)
	require.NoError(t, repo.Upsert(ctx, req))

	req.Status = domain.RequestStatus{Kind: domain.RequestStatusApproved}
	require.NoError(t, repo.Upsert(ctx, req))

	created, err := repo.ByStatus(ctx, domain.RequestStatusCreated)
	require.NoError(t, err)
	require.Empty(t, created)

	approved, err := repo.ByStatus(ctx, domain.RequestStatusApproved)
	require.NoError(t, err)
	require.Len(t, approved, 1)
}

func TestRequestsRemovePrunesIndexes(t *testing.T) {
	ctx := context.Background()
	repo := NewRequests(store.NewMemoryBackend())

	req := newRequest(domain.NewID(), domain.RequestStatusCreated)
	require.NoError(t, repo.Upsert(ctx, req))
	require.NoError(t, repo.Remove(ctx, req.ID))

	created, err := repo.ByStatus(ctx, domain.RequestStatusCreated)
	require.NoError(t, err)
	require.Empty(t, created)
}

func TestUserGroupsUniqueNameConflict(t *testing.T) {
	ctx := context.Background()
	groups := NewUserGroups(store.NewMemoryBackend())

	require.NoError(t, groups.Insert(ctx, domain.UserGroup{ID: domain.NewID(), Name: "Finance"}))

	err := groups.Insert(ctx, domain.UserGroup{ID: domain.NewID(), Name: "finance"})
	require.ErrorIs(t, err, store.ErrUniqueConflict)
}

func TestUsersByIdentity(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(store.NewMemoryBackend(), 0)

	u := domain.User{ID: domain.NewID(), Status: domain.UserStatusActive, Identities: []string{"pk-1"}}
	require.NoError(t, users.Insert(ctx, u))

	found, ok, err := users.ByIdentity(ctx, "pk-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, u.ID, found.ID)

	_, ok, err = users.ByIdentity(ctx, "unknown")
	require.NoError(t, err)
	require.False(t, ok)
}
