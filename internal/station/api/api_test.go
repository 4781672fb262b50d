package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbit-station/station/internal/platform/serviceauth"
	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/ledger"
	"github.com/orbit-station/station/internal/station/operations"
	"github.com/orbit-station/station/internal/station/repo"
	"github.com/orbit-station/station/internal/station/requestsvc"
	"github.com/orbit-station/station/internal/station/scheduler"
	"github.com/orbit-station/station/internal/station/store"
)

func newTestRouter(t *testing.T) (*Endpoints, http.Handler, *repo.Users) {
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
	svc := requestsvc.New(requestsvc.Config{
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

	handler := operations.NewManageSystemInfoHandler(systemInfo)
	name := "station"
	quorum := 1
	input, err := json.Marshal(operations.ManageSystemInfoInput{Name: &name, DefaultQuorum: &quorum})
	require.NoError(t, err)
	buildReq, err := handler.Build(context.Background(), operations.BuildParams{Input: input, Now: now})
	require.NoError(t, err)
	_, err = handler.Execute(context.Background(), buildReq)
	require.NoError(t, err)
	require.NoError(t, permissions.Set(context.Background(), domain.Permission{
		Resource: domain.Resource{Kind: domain.OperationAddUserGroup.ResourceKind(), Action: domain.ActionCreate},
		Allow:    domain.Authenticated(),
	}))

	endpoints := &Endpoints{
		svc:      svc,
		requests: requests,
		resolver: &callerResolver{users: users},
	}
	router := NewRouter(Config{
		Service:  svc,
		Requests: requests,
		Users:    users,
	})
	return endpoints, router, users
}

func withActor(req *http.Request, actorID string) *http.Request {
	return req.WithContext(serviceauth.WithActorID(req.Context(), actorID))
}

func TestCreateRequestEndpointReturnsCreatedRequest(t *testing.T) {
	_, router, users := newTestRouter(t)
	requester := domain.User{ID: domain.NewID(), Status: domain.UserStatusActive, Identities: []string{"pk-1"}}
	require.NoError(t, users.Insert(context.Background(), requester))

	opInput, err := json.Marshal(operations.UserGroupInput{Name: "treasury-ops"})
	require.NoError(t, err)
	body, err := json.Marshal(createRequestRequest{
		OperationType:  domain.OperationAddUserGroup,
		OperationInput: opInput,
		Title:          "create treasury-ops group",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader(body))
	req = withActor(req, requester.ID.String())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp requestEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, domain.RequestStatusCreated, resp.Request.Status.Kind)
	require.NotEmpty(t, resp.Request.ID)
}

func TestCreateRequestEndpointRejectsUnknownCaller(t *testing.T) {
	_, router, _ := newTestRouter(t)

	opInput, _ := json.Marshal(operations.UserGroupInput{Name: "orphan-group"})
	body, _ := json.Marshal(createRequestRequest{
		OperationType:  domain.OperationAddUserGroup,
		OperationInput: opInput,
		Title:          "create orphan group",
	})

	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader(body))
	req = withActor(req, domain.NewID().String())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetNextApprovableRequestEndpointReturnsEmptyEnvelopeWhenNone(t *testing.T) {
	_, router, users := newTestRouter(t)
	approver := domain.User{ID: domain.NewID(), Status: domain.UserStatusActive, Identities: []string{"pk-2"}}
	require.NoError(t, users.Insert(context.Background(), approver))

	req := httptest.NewRequest(http.MethodGet, "/requests/next-approvable", nil)
	req = withActor(req, approver.ID.String())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp requestEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.Request.ID)
}

func TestNotifyFailedUpgradeEndpointAcknowledges(t *testing.T) {
	_, router, _ := newTestRouter(t)

	body, _ := json.Marshal(notifyFailedUpgradeRequest{Reason: "canister trapped mid-install"})
	req := httptest.NewRequest(http.MethodPost, "/upgrades/failed", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp notifyFailedUpgradeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Acknowledged)
}
