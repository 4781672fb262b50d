package operations

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/repo"
	"github.com/orbit-station/station/internal/station/store"
)

func testBuildParams(input any) BuildParams {
	raw, _ := json.Marshal(input)
	now := time.Unix(1_700_000_000, 0)
	return BuildParams{
		RequestedBy: domain.NewID(),
		Title:       "test request",
		Now:         now,
		ExpiresAt:   now.Add(24 * time.Hour),
		Input:       raw,
	}
}

func TestAddRequestPolicyBuildAndExecute(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	bindings := repo.NewPolicyBindings(backend)
	resolve := func(context.Context, domain.ID) (domain.Rule, error) {
		return domain.Rule{}, fmt.Errorf("no named rules registered")
	}
	h := NewAddRequestPolicyHandler(bindings, resolve)

	input := RequestPolicyInput{
		Specifier: domain.RequestSpecifier{OperationType: domain.OperationTransfer},
		Rule:      domain.Rule{Kind: domain.RuleAutoApproved},
	}
	req, err := h.Build(ctx, testBuildParams(input))
	require.NoError(t, err)
	require.Equal(t, domain.OperationAddRequestPolicy, req.Operation.Type)

	outcome, err := h.Execute(ctx, req)
	require.NoError(t, err)
	require.True(t, outcome.Completed)

	stored, err := bindings.Get(ctx, req.Operation.TargetID)
	require.NoError(t, err)
	require.Equal(t, domain.RuleAutoApproved, stored.Rule.Kind)
}

func TestEditRequestPolicyRejectsUnknownID(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	bindings := repo.NewPolicyBindings(backend)
	resolve := func(context.Context, domain.ID) (domain.Rule, error) { return domain.Rule{}, nil }
	h := NewEditRequestPolicyHandler(bindings, resolve)

	id := domain.NewID()
	input := RequestPolicyInput{ID: &id, Rule: domain.Rule{Kind: domain.RuleAutoApproved}}
	_, err := h.Build(ctx, testBuildParams(input))
	require.Error(t, err)
}

func TestRemoveRequestPolicyHappyPath(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	bindings := repo.NewPolicyBindings(backend)
	binding := domain.PolicyBinding{ID: domain.NewID(), Rule: domain.Rule{Kind: domain.RuleAutoApproved}}
	require.NoError(t, bindings.Insert(ctx, binding))

	h := NewRemoveRequestPolicyHandler(bindings)
	input := RequestPolicyInput{ID: &binding.ID}
	req, err := h.Build(ctx, testBuildParams(input))
	require.NoError(t, err)

	outcome, err := h.Execute(ctx, req)
	require.NoError(t, err)
	require.True(t, outcome.Completed)
	require.False(t, bindings.Exists(ctx, binding.ID))
}

func TestNamedRulesServiceRejectsCycleOnEdit(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	rulesRepo := repo.NewNamedRules(backend)
	svc := NewNamedRules(rulesRepo)

	a, err := svc.Create(ctx, "a", "", domain.Rule{Kind: domain.RuleAutoApproved}, 1)
	require.NoError(t, err)
	b, err := svc.Create(ctx, "b", "", domain.Rule{Kind: domain.RuleNamedRule, NamedRuleID: a.ID}, 1)
	require.NoError(t, err)

	_, err = svc.Edit(ctx, a.ID, "a", "", domain.Rule{Kind: domain.RuleNamedRule, NamedRuleID: b.ID}, 2)
	require.Error(t, err)
}

func TestNamedRulesServiceAllowsAcyclicEdit(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	rulesRepo := repo.NewNamedRules(backend)
	svc := NewNamedRules(rulesRepo)

	a, err := svc.Create(ctx, "a", "", domain.Rule{Kind: domain.RuleAutoApproved}, 1)
	require.NoError(t, err)

	updated, err := svc.Edit(ctx, a.ID, "a-renamed", "updated", domain.Rule{Kind: domain.RuleAutoRejected}, 2)
	require.NoError(t, err)
	require.Equal(t, "a-renamed", updated.Name)
	require.Equal(t, domain.RuleAutoRejected, updated.Rule.Kind)
}

func TestManageSystemInfoUpdatesMutableFields(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	infoStore := NewSystemInfoStore(backend)
	require.NoError(t, infoStore.put(ctx, domain.SystemInfo{Name: "station", DefaultQuorum: 1}))

	h := NewManageSystemInfoHandler(infoStore)
	name := "renamed-station"
	quorum := 3
	req, err := h.Build(ctx, testBuildParams(ManageSystemInfoInput{Name: &name, DefaultQuorum: &quorum}))
	require.NoError(t, err)

	outcome, err := h.Execute(ctx, req)
	require.NoError(t, err)
	require.True(t, outcome.Completed)

	updated, err := infoStore.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "renamed-station", updated.Name)
	require.Equal(t, 3, updated.DefaultQuorum)
}

func TestSetDisasterRecoveryRejectsUnknownGroup(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	infoStore := NewSystemInfoStore(backend)

	h := NewSetDisasterRecoveryHandler(infoStore, func(domain.ID) bool { return false })
	input := SetDisasterRecoveryInput{UserGroupID: domain.NewID(), Quorum: 2}
	_, err := h.Build(ctx, testBuildParams(input))
	require.Error(t, err)
}

type stubUpgrader struct {
	err error
}

func (s stubUpgrader) Upgrade(context.Context, string, []byte) error { return s.err }

func TestChangeCanisterRecordsUpgradeTimestamp(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	infoStore := NewSystemInfoStore(backend)
	require.NoError(t, infoStore.put(ctx, domain.SystemInfo{Name: "station"}))

	h := NewChangeCanisterHandler(infoStore, stubUpgrader{})
	req, err := h.Build(ctx, testBuildParams(ChangeCanisterInput{ModuleHash: "deadbeef"}))
	require.NoError(t, err)

	outcome, err := h.Execute(ctx, req)
	require.NoError(t, err)
	require.True(t, outcome.Completed)

	updated, err := infoStore.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, req.CreatedAt, updated.LastUpgradeTimestamp)
}

func TestChangeCanisterReportsUpgraderFailureAsExecuteFailure(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	infoStore := NewSystemInfoStore(backend)
	h := NewChangeCanisterHandler(infoStore, stubUpgrader{err: fmt.Errorf("upgrader unreachable")})

	req, err := h.Build(ctx, testBuildParams(ChangeCanisterInput{ModuleHash: "deadbeef"}))
	require.NoError(t, err)

	outcome, err := h.Execute(ctx, req)
	require.NoError(t, err)
	require.False(t, outcome.Completed)
	require.Contains(t, outcome.Reason, "upgrader unreachable")
}

type stubExternalResourceAdapter struct {
	validateErr error
	invokeErr   error
	invokeCalls int
}

func (a *stubExternalResourceAdapter) Validate(context.Context, ExternalResourceAction, ExternalResourceInput) error {
	return a.validateErr
}

func (a *stubExternalResourceAdapter) Invoke(_ context.Context, action ExternalResourceAction, _ ExternalResourceInput) ([]byte, error) {
	a.invokeCalls++
	if a.invokeErr != nil {
		return nil, a.invokeErr
	}
	return []byte(string(action) + "-ok"), nil
}

func TestCreateExternalResourceHappyPath(t *testing.T) {
	ctx := context.Background()
	adapter := &stubExternalResourceAdapter{}
	h := NewCreateExternalResourceHandler(adapter)

	req, err := h.Build(ctx, testBuildParams(ExternalResourceInput{}))
	require.NoError(t, err)
	require.Equal(t, domain.OperationCreateExternalResource, req.Operation.Type)

	outcome, err := h.Execute(ctx, req)
	require.NoError(t, err)
	require.True(t, outcome.Completed)
	require.Equal(t, 1, adapter.invokeCalls)
}

func TestCallExternalResourceRequiresResourceID(t *testing.T) {
	ctx := context.Background()
	adapter := &stubExternalResourceAdapter{}
	h := NewCallExternalResourceHandler(adapter)

	_, err := h.Build(ctx, testBuildParams(ExternalResourceInput{}))
	require.Error(t, err)
}

func TestFundExternalResourceExecuteFailureIsReportedNotReturned(t *testing.T) {
	ctx := context.Background()
	adapter := &stubExternalResourceAdapter{invokeErr: fmt.Errorf("insufficient balance")}
	h := NewFundExternalResourceHandler(adapter)

	id := domain.NewID()
	req, err := h.Build(ctx, testBuildParams(ExternalResourceInput{ResourceID: id.String()}))
	require.NoError(t, err)

	outcome, err := h.Execute(ctx, req)
	require.NoError(t, err)
	require.False(t, outcome.Completed)
	require.Contains(t, outcome.Reason, "insufficient balance")
}
