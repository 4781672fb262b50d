package operations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/repo"
)

// UserGroupInput is the shared payload of AddUserGroup/EditUserGroup.
type UserGroupInput struct {
	ID   *domain.ID `json:"id,omitempty"`
	Name string     `json:"name"`
}

// AddUserGroupHandler implements the AddUserGroup operation kind.
type AddUserGroupHandler struct {
	noopOnCreated
	groups *repo.UserGroups
}

// NewAddUserGroupHandler builds an AddUserGroupHandler.
func NewAddUserGroupHandler(groups *repo.UserGroups) *AddUserGroupHandler {
	return &AddUserGroupHandler{groups: groups}
}

func (h *AddUserGroupHandler) Type() domain.RequestOperationType {
	return domain.OperationAddUserGroup
}

func (h *AddUserGroupHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input UserGroupInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode add_user_group input: %w", err)
	}
	if input.Name == "" {
		return domain.Request{}, domain.ValidationErrorf("user_group", "name", "name is required")
	}
	if _, ok, err := h.groups.ByName(ctx, input.Name); err != nil {
		return domain.Request{}, err
	} else if ok {
		return domain.Request{}, domain.ValidationErrorf("user_group", "name", "name %q already in use", input.Name)
	}
	id := domain.NewID()
	return NewRequest(domain.OperationAddUserGroup, id, params), nil
}

func (h *AddUserGroupHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	var input UserGroupInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: decode add_user_group input: %w", err)
	}
	group := domain.UserGroup{ID: req.Operation.TargetID, Name: input.Name, LastModificationTimestamp: req.CreatedAt}
	if err := h.groups.Insert(ctx, group); err != nil {
		return ExecuteOutcome{}, err
	}
	output, _ := json.Marshal(group)
	return Completed(output), nil
}

// EditUserGroupHandler implements the EditUserGroup operation kind.
type EditUserGroupHandler struct {
	noopOnCreated
	groups *repo.UserGroups
}

// NewEditUserGroupHandler builds an EditUserGroupHandler.
func NewEditUserGroupHandler(groups *repo.UserGroups) *EditUserGroupHandler {
	return &EditUserGroupHandler{groups: groups}
}

func (h *EditUserGroupHandler) Type() domain.RequestOperationType {
	return domain.OperationEditUserGroup
}

func (h *EditUserGroupHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input UserGroupInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode edit_user_group input: %w", err)
	}
	if input.ID == nil {
		return domain.Request{}, domain.ValidationErrorf("user_group", "id", "required for edit_user_group")
	}
	existing, err := h.groups.Get(ctx, *input.ID)
	if err != nil {
		return domain.Request{}, err
	}
	if owner, ok, err := h.groups.ByName(ctx, input.Name); err != nil {
		return domain.Request{}, err
	} else if ok && owner.ID != existing.ID {
		return domain.Request{}, domain.ValidationErrorf("user_group", "name", "name %q already in use", input.Name)
	}
	return NewRequest(domain.OperationEditUserGroup, existing.ID, params), nil
}

func (h *EditUserGroupHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	var input UserGroupInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: decode edit_user_group input: %w", err)
	}
	existing, err := h.groups.Get(ctx, req.Operation.TargetID)
	if err != nil {
		return ExecuteOutcome{}, err
	}
	existing.Name = input.Name
	existing.LastModificationTimestamp = req.CreatedAt
	if err := h.groups.Insert(ctx, existing); err != nil {
		return ExecuteOutcome{}, err
	}
	output, _ := json.Marshal(existing)
	return Completed(output), nil
}

// RemoveUserGroupHandler implements the RemoveUserGroup operation kind.
type RemoveUserGroupHandler struct {
	noopOnCreated
	groups *repo.UserGroups
}

// NewRemoveUserGroupHandler builds a RemoveUserGroupHandler.
func NewRemoveUserGroupHandler(groups *repo.UserGroups) *RemoveUserGroupHandler {
	return &RemoveUserGroupHandler{groups: groups}
}

func (h *RemoveUserGroupHandler) Type() domain.RequestOperationType {
	return domain.OperationRemoveUserGroup
}

func (h *RemoveUserGroupHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input UserGroupInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode remove_user_group input: %w", err)
	}
	if input.ID == nil {
		return domain.Request{}, domain.ValidationErrorf("user_group", "id", "required for remove_user_group")
	}
	if !h.groups.Exists(ctx, *input.ID) {
		return domain.Request{}, domain.ValidationErrorf("user_group", "id", "group %s does not exist", *input.ID)
	}
	return NewRequest(domain.OperationRemoveUserGroup, *input.ID, params), nil
}

func (h *RemoveUserGroupHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	if err := h.groups.Remove(ctx, req.Operation.TargetID); err != nil {
		return ExecuteOutcome{}, err
	}
	return Completed(nil), nil
}
