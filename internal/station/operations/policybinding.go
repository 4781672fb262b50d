package operations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/policy"
	"github.com/orbit-station/station/internal/station/repo"
)

// RequestPolicyInput is the shared payload of AddRequestPolicy /
// EditRequestPolicy (§4.6, grounded on
// factories/requests/edit_request_policy.rs).
type RequestPolicyInput struct {
	ID        *domain.ID              `json:"id,omitempty"`
	Specifier domain.RequestSpecifier `json:"specifier"`
	Rule      domain.Rule             `json:"rule"`
}

// ResolveNamedRule resolves a stored NamedRule's body by ID, used to check
// that a PolicyBinding's rule tree contains no NamedRule cycle.
type ResolveNamedRule func(ctx context.Context, id domain.ID) (domain.Rule, error)

// AddRequestPolicyHandler implements AddRequestPolicy.
type AddRequestPolicyHandler struct {
	noopOnCreated
	bindings *repo.PolicyBindings
	resolve  ResolveNamedRule
}

// NewAddRequestPolicyHandler builds an AddRequestPolicyHandler.
func NewAddRequestPolicyHandler(bindings *repo.PolicyBindings, resolve ResolveNamedRule) *AddRequestPolicyHandler {
	return &AddRequestPolicyHandler{bindings: bindings, resolve: resolve}
}

func (h *AddRequestPolicyHandler) Type() domain.RequestOperationType {
	return domain.OperationAddRequestPolicy
}

func (h *AddRequestPolicyHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input RequestPolicyInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode add_request_policy input: %w", err)
	}
	if _, err := policy.Expand(input.Rule, h.namedRuleResolver(ctx)); err != nil {
		return domain.Request{}, err
	}
	id := domain.NewID()
	return NewRequest(domain.OperationAddRequestPolicy, id, params), nil
}

func (h *AddRequestPolicyHandler) namedRuleResolver(ctx context.Context) policy.ResolveNamedRule {
	return func(id domain.ID) (domain.Rule, error) { return h.resolve(ctx, id) }
}

func (h *AddRequestPolicyHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	var input RequestPolicyInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: decode add_request_policy input: %w", err)
	}
	binding := domain.PolicyBinding{
		ID:                        req.Operation.TargetID,
		Specifier:                 input.Specifier,
		Rule:                      input.Rule,
		LastModificationTimestamp: req.CreatedAt,
	}
	if err := h.bindings.Insert(ctx, binding); err != nil {
		return ExecuteOutcome{}, err
	}
	output, _ := json.Marshal(binding)
	return Completed(output), nil
}

// EditRequestPolicyHandler implements EditRequestPolicy.
type EditRequestPolicyHandler struct {
	noopOnCreated
	bindings *repo.PolicyBindings
	resolve  ResolveNamedRule
}

// NewEditRequestPolicyHandler builds an EditRequestPolicyHandler.
func NewEditRequestPolicyHandler(bindings *repo.PolicyBindings, resolve ResolveNamedRule) *EditRequestPolicyHandler {
	return &EditRequestPolicyHandler{bindings: bindings, resolve: resolve}
}

func (h *EditRequestPolicyHandler) Type() domain.RequestOperationType {
	return domain.OperationEditRequestPolicy
}

func (h *EditRequestPolicyHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input RequestPolicyInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode edit_request_policy input: %w", err)
	}
	if input.ID == nil {
		return domain.Request{}, domain.ValidationErrorf("policy_binding", "id", "required for edit_request_policy")
	}
	if !h.bindings.Exists(ctx, *input.ID) {
		return domain.Request{}, domain.ValidationErrorf("policy_binding", "id", "binding %s does not exist", *input.ID)
	}
	resolve := func(id domain.ID) (domain.Rule, error) { return h.resolve(ctx, id) }
	if _, err := policy.Expand(input.Rule, resolve); err != nil {
		return domain.Request{}, err
	}
	return NewRequest(domain.OperationEditRequestPolicy, *input.ID, params), nil
}

func (h *EditRequestPolicyHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	var input RequestPolicyInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: decode edit_request_policy input: %w", err)
	}
	binding, err := h.bindings.Get(ctx, req.Operation.TargetID)
	if err != nil {
		return ExecuteOutcome{}, err
	}
	binding.Specifier = input.Specifier
	binding.Rule = input.Rule
	binding.LastModificationTimestamp = req.CreatedAt
	if err := h.bindings.Insert(ctx, binding); err != nil {
		return ExecuteOutcome{}, err
	}
	output, _ := json.Marshal(binding)
	return Completed(output), nil
}

// RemoveRequestPolicyHandler implements RemoveRequestPolicy.
type RemoveRequestPolicyHandler struct {
	noopOnCreated
	bindings *repo.PolicyBindings
}

// NewRemoveRequestPolicyHandler builds a RemoveRequestPolicyHandler.
func NewRemoveRequestPolicyHandler(bindings *repo.PolicyBindings) *RemoveRequestPolicyHandler {
	return &RemoveRequestPolicyHandler{bindings: bindings}
}

func (h *RemoveRequestPolicyHandler) Type() domain.RequestOperationType {
	return domain.OperationRemoveRequestPolicy
}

func (h *RemoveRequestPolicyHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input RequestPolicyInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode remove_request_policy input: %w", err)
	}
	if input.ID == nil {
		return domain.Request{}, domain.ValidationErrorf("policy_binding", "id", "required for remove_request_policy")
	}
	if !h.bindings.Exists(ctx, *input.ID) {
		return domain.Request{}, domain.ValidationErrorf("policy_binding", "id", "binding %s does not exist", *input.ID)
	}
	return NewRequest(domain.OperationRemoveRequestPolicy, *input.ID, params), nil
}

func (h *RemoveRequestPolicyHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	if err := h.bindings.Remove(ctx, req.Operation.TargetID); err != nil {
		return ExecuteOutcome{}, err
	}
	return Completed(nil), nil
}
