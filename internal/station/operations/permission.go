package operations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/repo"
)

// EditPermissionInput names the Resource whose Allow is being replaced and
// the new Allow itself (§4.6 "resource-scoped allow-list edits").
type EditPermissionInput struct {
	Resource domain.Resource `json:"resource"`
	Allow    domain.Allow    `json:"allow"`
}

// EditPermissionHandler implements the EditPermission operation kind.
type EditPermissionHandler struct {
	noopOnCreated
	permissions *repo.Permissions
}

// NewEditPermissionHandler builds an EditPermissionHandler.
func NewEditPermissionHandler(permissions *repo.Permissions) *EditPermissionHandler {
	return &EditPermissionHandler{permissions: permissions}
}

func (h *EditPermissionHandler) Type() domain.RequestOperationType {
	return domain.OperationEditPermission
}

func (h *EditPermissionHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input EditPermissionInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode edit_permission input: %w", err)
	}
	if input.Resource.Kind == "" || input.Resource.Action == "" {
		return domain.Request{}, domain.ValidationErrorf("permission", "resource", "resource kind and action are required")
	}
	return NewRequest(domain.OperationEditPermission, domain.ZeroID, params), nil
}

func (h *EditPermissionHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	var input EditPermissionInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: decode edit_permission input: %w", err)
	}
	permission := domain.Permission{Resource: input.Resource, Allow: input.Allow}
	if err := h.permissions.Set(ctx, permission); err != nil {
		return ExecuteOutcome{}, err
	}
	output, _ := json.Marshal(permission)
	return Completed(output), nil
}
