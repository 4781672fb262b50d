package operations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/repo"
)

// UserInput is the shared payload of AddUser/EditUser.
type UserInput struct {
	ID         *domain.ID `json:"id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Identities []string   `json:"identities"`
	Groups     []domain.ID `json:"groups,omitempty"`
	Status     domain.UserStatus `json:"status,omitempty"`
}

func (in UserInput) toUser(existing domain.User, now int64) domain.User {
	existing.Name = in.Name
	existing.Identities = in.Identities
	existing.Groups = in.Groups
	if in.Status != "" {
		existing.Status = in.Status
	} else if existing.Status == "" {
		existing.Status = domain.UserStatusActive
	}
	existing.LastModificationTimestamp = now
	return existing
}

// AddUserHandler implements the AddUser operation kind.
type AddUserHandler struct {
	noopOnCreated
	users       *repo.Users
	groupExists func(domain.ID) bool
}

// NewAddUserHandler builds an AddUserHandler.
func NewAddUserHandler(users *repo.Users, groupExists func(domain.ID) bool) *AddUserHandler {
	return &AddUserHandler{users: users, groupExists: groupExists}
}

func (h *AddUserHandler) Type() domain.RequestOperationType { return domain.OperationAddUser }

func (h *AddUserHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input UserInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode add_user input: %w", err)
	}
	user := input.toUser(domain.User{ID: domain.NewID()}, params.Now.UnixNano())
	if err := user.Validate(h.groupExists); err != nil {
		return domain.Request{}, err
	}
	return NewRequest(domain.OperationAddUser, user.ID, params), nil
}

func (h *AddUserHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	var input UserInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: decode add_user input: %w", err)
	}
	user := input.toUser(domain.User{ID: req.Operation.TargetID}, req.CreatedAt)
	if err := h.users.Insert(ctx, user); err != nil {
		return ExecuteOutcome{}, err
	}
	output, _ := json.Marshal(user)
	return Completed(output), nil
}

// EditUserHandler implements the EditUser operation kind.
type EditUserHandler struct {
	noopOnCreated
	users       *repo.Users
	groupExists func(domain.ID) bool
}

// NewEditUserHandler builds an EditUserHandler.
func NewEditUserHandler(users *repo.Users, groupExists func(domain.ID) bool) *EditUserHandler {
	return &EditUserHandler{users: users, groupExists: groupExists}
}

func (h *EditUserHandler) Type() domain.RequestOperationType { return domain.OperationEditUser }

func (h *EditUserHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input UserInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode edit_user input: %w", err)
	}
	if input.ID == nil {
		return domain.Request{}, domain.ValidationErrorf("user", "id", "required for edit_user")
	}
	existing, err := h.users.Get(ctx, *input.ID)
	if err != nil {
		return domain.Request{}, err
	}
	updated := input.toUser(existing, params.Now.UnixNano())
	if err := updated.Validate(h.groupExists); err != nil {
		return domain.Request{}, err
	}
	return NewRequest(domain.OperationEditUser, existing.ID, params), nil
}

func (h *EditUserHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	var input UserInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: decode edit_user input: %w", err)
	}
	existing, err := h.users.Get(ctx, req.Operation.TargetID)
	if err != nil {
		return ExecuteOutcome{}, err
	}
	updated := input.toUser(existing, req.CreatedAt)
	if err := h.users.Insert(ctx, updated); err != nil {
		return ExecuteOutcome{}, err
	}
	output, _ := json.Marshal(updated)
	return Completed(output), nil
}
