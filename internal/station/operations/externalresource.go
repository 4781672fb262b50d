package operations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orbit-station/station/internal/station/domain"
)

// ExternalResourceAction distinguishes the five external-resource operation
// kinds that all share one build/execute contract (§4.6's consolidation
// decision).
type ExternalResourceAction string

const (
	ExternalResourceCreate    ExternalResourceAction = "create"
	ExternalResourceChange    ExternalResourceAction = "change"
	ExternalResourceConfigure ExternalResourceAction = "configure"
	ExternalResourceCall      ExternalResourceAction = "call"
	ExternalResourceFund      ExternalResourceAction = "fund"
)

// ExternalResourceInput is the shared payload of every external-resource
// operation kind: a reference to the resource (empty ResourceID on Create)
// plus an opaque action-specific argument blob forwarded verbatim to the
// adapter.
type ExternalResourceInput struct {
	ResourceID string          `json:"resource_id,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
}

// ExternalResourceAdapter performs the actual effect against whatever
// backs a managed external resource (a second canister in the reference;
// an arbitrary external system here). Implementations are registered per
// resource kind by the caller wiring the Registry.
type ExternalResourceAdapter interface {
	// Validate checks that input names a resource the adapter recognizes,
	// without performing any effect. Called from Build.
	Validate(ctx context.Context, action ExternalResourceAction, input ExternalResourceInput) error
	// Invoke performs action against the resource, returning an opaque
	// result blob to store as the Request's Operation.Output.
	Invoke(ctx context.Context, action ExternalResourceAction, input ExternalResourceInput) ([]byte, error)
}

// externalResourceHandler implements one of the five external-resource
// RequestOperationTypes, all sharing this same build/execute shape.
type externalResourceHandler struct {
	noopOnCreated
	opType  domain.RequestOperationType
	action  ExternalResourceAction
	adapter ExternalResourceAdapter
}

// NewCreateExternalResourceHandler builds the CreateExternalResource handler.
func NewCreateExternalResourceHandler(adapter ExternalResourceAdapter) Handler {
	return &externalResourceHandler{opType: domain.OperationCreateExternalResource, action: ExternalResourceCreate, adapter: adapter}
}

// NewChangeExternalResourceHandler builds the ChangeExternalResource handler.
func NewChangeExternalResourceHandler(adapter ExternalResourceAdapter) Handler {
	return &externalResourceHandler{opType: domain.OperationChangeExternalResource, action: ExternalResourceChange, adapter: adapter}
}

// NewConfigureExternalResourceHandler builds the ConfigureExternalResource handler.
func NewConfigureExternalResourceHandler(adapter ExternalResourceAdapter) Handler {
	return &externalResourceHandler{opType: domain.OperationConfigureExternalResource, action: ExternalResourceConfigure, adapter: adapter}
}

// NewCallExternalResourceHandler builds the CallExternalResource handler.
func NewCallExternalResourceHandler(adapter ExternalResourceAdapter) Handler {
	return &externalResourceHandler{opType: domain.OperationCallExternalResource, action: ExternalResourceCall, adapter: adapter}
}

// NewFundExternalResourceHandler builds the FundExternalResource handler.
func NewFundExternalResourceHandler(adapter ExternalResourceAdapter) Handler {
	return &externalResourceHandler{opType: domain.OperationFundExternalResource, action: ExternalResourceFund, adapter: adapter}
}

func (h *externalResourceHandler) Type() domain.RequestOperationType { return h.opType }

func (h *externalResourceHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input ExternalResourceInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode %s input: %w", h.opType, err)
	}
	if h.action != ExternalResourceCreate && input.ResourceID == "" {
		return domain.Request{}, domain.ValidationErrorf("external_resource", "resource_id", "resource_id is required for %s", h.action)
	}
	if err := h.adapter.Validate(ctx, h.action, input); err != nil {
		return domain.Request{}, err
	}
	targetID := domain.NewID()
	if input.ResourceID != "" {
		parsed, err := domain.ParseID(input.ResourceID)
		if err != nil {
			return domain.Request{}, domain.ValidationErrorf("external_resource", "resource_id", "invalid resource_id: %v", err)
		}
		targetID = parsed
	}
	return NewRequest(h.opType, targetID, params), nil
}

func (h *externalResourceHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	var input ExternalResourceInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: decode %s input: %w", h.opType, err)
	}
	output, err := h.adapter.Invoke(ctx, h.action, input)
	if err != nil {
		return Failed(err.Error()), nil
	}
	return Completed(output), nil
}
