package requestsvc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbit-station/station/internal/station/authz"
	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/ledger"
	"github.com/orbit-station/station/internal/station/operations"
	"github.com/orbit-station/station/internal/station/repo"
	"github.com/orbit-station/station/internal/station/scheduler"
	"github.com/orbit-station/station/internal/station/store"
)

type fixture struct {
	svc        *Service
	users      *repo.Users
	userGroups *repo.UserGroups
	requests   *repo.Requests
	bindings   *repo.PolicyBindings
	permissions *repo.Permissions
	systemInfo *operations.SystemInfoStore
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := store.NewMemoryBackend()
	users := repo.NewUsers(backend, 0)
	groups := repo.NewUserGroups(backend)
	accounts := repo.NewAccounts(backend, 0)
	addressBook := repo.NewAddressBook(backend)
	permissions := repo.NewPermissions(backend)
	bindings := repo.NewPolicyBindings(backend)
	namedRules := repo.NewNamedRules(backend)
	requests := repo.NewRequests(backend)
	transfers := repo.NewTransfers(backend)
	systemInfo := operations.NewSystemInfoStore(backend)

	registry := operations.NewRegistry()
	registry.Register(operations.NewAddUserGroupHandler(groups))

	now := time.Unix(1_700_000_000, 0).UTC()
	svc := New(Config{
		Requests:       requests,
		Users:          users,
		UserGroups:     groups,
		Accounts:       accounts,
		AddressBook:    addressBook,
		Permissions:    permissions,
		PolicyBindings: bindings,
		NamedRules:     namedRules,
		Transfers:      transfers,
		SystemInfo:     systemInfo,
		Registry:       registry,
		Ledgers:        ledger.NewRegistry(),
		Now:            func() time.Time { return now },
	})
	sched := scheduler.New(svc, time.Second, func() time.Time { return now }, nil)
	svc.AttachScheduler(sched)

	require.NoError(t, systemInfo2Put(systemInfo, domain.SystemInfo{Name: "station", DefaultQuorum: 1}))
	require.NoError(t, permissions.Set(context.Background(), domain.Permission{
		Resource: domain.Resource{Kind: domain.OperationAddUserGroup.ResourceKind(), Action: domain.ActionCreate},
		Allow:    domain.Authenticated(),
	}))

	return &fixture{
		svc:         svc,
		users:       users,
		userGroups:  groups,
		requests:    requests,
		bindings:    bindings,
		permissions: permissions,
		systemInfo:  systemInfo,
		now:         now,
	}
}

// systemInfo2Put reaches the unexported SystemInfoStore.put via its public
// surface: ManageSystemInfoHandler.Execute is the only writer, so tests
// seed SystemInfo through a throwaway request instead of a backdoor.
func systemInfo2Put(infoStore *operations.SystemInfoStore, info domain.SystemInfo) error {
	handler := operations.NewManageSystemInfoHandler(infoStore)
	name := info.Name
	quorum := info.DefaultQuorum
	input, _ := json.Marshal(operations.ManageSystemInfoInput{Name: &name, DefaultQuorum: &quorum})
	req, err := handler.Build(context.Background(), operations.BuildParams{Input: input, Now: time.Now()})
	if err != nil {
		return err
	}
	_, err = handler.Execute(context.Background(), req)
	return err
}

func activeUser(t *testing.T, f *fixture) domain.User {
	t.Helper()
	u := domain.User{ID: domain.NewID(), Status: domain.UserStatusActive, Identities: []string{"pubkey-1"}}
	require.NoError(t, f.users.Insert(context.Background(), u))
	return u
}

func TestCreateRequestStaysCreatedUnderDefaultQuorumOfOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requester := activeUser(t, f)
	caller := authz.Authenticated(requester)

	input := operations.UserGroupInput{Name: "treasury-ops"}
	raw, err := json.Marshal(input)
	require.NoError(t, err)

	req, err := f.svc.CreateRequest(ctx, caller, CreateRequestInput{
		OperationType:  domain.OperationAddUserGroup,
		Title:          "create treasury-ops group",
		OperationInput: raw,
	})
	require.NoError(t, err)
	require.Equal(t, domain.RequestStatusCreated, req.Status.Kind)
	require.Contains(t, req.PolicySnapshot.EligibleApprovers, requester.ID)
}

func TestSubmitRequestApprovalDrivesRequestToCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requester := activeUser(t, f)
	approver := activeUser(t, f)
	caller := authz.Authenticated(requester)
	approverCaller := authz.Authenticated(approver)

	raw, _ := json.Marshal(operations.UserGroupInput{Name: "ops"})
	req, err := f.svc.CreateRequest(ctx, caller, CreateRequestInput{
		OperationType:  domain.OperationAddUserGroup,
		Title:          "create ops group",
		OperationInput: raw,
	})
	require.NoError(t, err)
	require.Equal(t, domain.RequestStatusCreated, req.Status.Kind)

	approved, err := f.svc.SubmitRequestApproval(ctx, approverCaller, SubmitRequestApprovalInput{
		RequestID: req.ID,
		Decision:  domain.DecisionApproved,
	})
	require.NoError(t, err)
	require.Equal(t, domain.RequestStatusScheduled, approved.Status.Kind)

	f.svc.ExecuteScheduledRequests(ctx)

	final, err := f.requests.Get(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RequestStatusCompleted, final.Status.Kind)

	_, ok, err := f.userGroups.ByName(ctx, "ops")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSubmitRequestApprovalRejectsSecondVoteFromSameApprover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requester := activeUser(t, f)
	caller := authz.Authenticated(requester)

	raw, _ := json.Marshal(operations.UserGroupInput{Name: "dup-vote"})
	req, err := f.svc.CreateRequest(ctx, caller, CreateRequestInput{
		OperationType:  domain.OperationAddUserGroup,
		Title:          "create dup-vote group",
		OperationInput: raw,
	})
	require.NoError(t, err)

	_, err = f.svc.SubmitRequestApproval(ctx, caller, SubmitRequestApprovalInput{
		RequestID: req.ID,
		Decision:  domain.DecisionApproved,
	})
	require.NoError(t, err)

	_, err = f.svc.SubmitRequestApproval(ctx, caller, SubmitRequestApprovalInput{
		RequestID: req.ID,
		Decision:  domain.DecisionApproved,
	})
	require.Error(t, err)
}

func TestCancelExpiredRequestsIgnoresAlreadyDecidedRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requester := activeUser(t, f)
	caller := authz.Authenticated(requester)

	raw, _ := json.Marshal(operations.UserGroupInput{Name: "survives-timer"})
	req, err := f.svc.CreateRequest(ctx, caller, CreateRequestInput{
		OperationType:  domain.OperationAddUserGroup,
		Title:          "create survives-timer group",
		OperationInput: raw,
	})
	require.NoError(t, err)

	_, err = f.svc.SubmitRequestApproval(ctx, caller, SubmitRequestApprovalInput{
		RequestID: req.ID,
		Decision:  domain.DecisionApproved,
	})
	require.NoError(t, err)

	f.svc.CancelExpiredRequests(ctx, req.ID)

	final, err := f.requests.Get(ctx, req.ID)
	require.NoError(t, err)
	require.NotEqual(t, domain.RequestStatusCancelled, final.Status.Kind)
}

func TestListRequestsPaginatesAndFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requester := activeUser(t, f)
	caller := authz.Authenticated(requester)

	for i := 0; i < 3; i++ {
		raw, _ := json.Marshal(operations.UserGroupInput{Name: "group-" + requester.ID.String()[:8] + string(rune('a'+i))})
		_, err := f.svc.CreateRequest(ctx, caller, CreateRequestInput{
			OperationType:  domain.OperationAddUserGroup,
			Title:          "create group",
			OperationInput: raw,
		})
		require.NoError(t, err)
	}

	result, err := f.svc.ListRequests(ctx, caller, ListRequestsInput{
		Filter: StatusFilter(f.requests, domain.RequestStatusCreated),
		Limit:  2,
	})
	require.NoError(t, err)
	require.Equal(t, 3, result.Total)
	require.Len(t, result.Requests, 2)
	require.NotNil(t, result.NextOffset)
	require.Equal(t, 2, *result.NextOffset)
}

func TestGetNextApprovableRequestSkipsAlreadyVoted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requester := activeUser(t, f)
	approver := activeUser(t, f)
	caller := authz.Authenticated(requester)
	approverCaller := authz.Authenticated(approver)

	raw, _ := json.Marshal(operations.UserGroupInput{Name: "next-approvable"})
	req, err := f.svc.CreateRequest(ctx, caller, CreateRequestInput{
		OperationType:  domain.OperationAddUserGroup,
		Title:          "create next-approvable group",
		OperationInput: raw,
	})
	require.NoError(t, err)

	next, err := f.svc.GetNextApprovableRequest(ctx, approverCaller)
	require.NoError(t, err)
	require.Equal(t, req.ID, next.ID)

	_, err = f.svc.SubmitRequestApproval(ctx, approverCaller, SubmitRequestApprovalInput{
		RequestID: req.ID,
		Decision:  domain.DecisionApproved,
	})
	require.NoError(t, err)

	_, err = f.svc.GetNextApprovableRequest(ctx, approverCaller)
	require.Error(t, err)
}
