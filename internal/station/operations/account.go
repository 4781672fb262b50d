package operations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/repo"
)

// AccountInput is the shared payload of AddAccount/EditAccount.
type AccountInput struct {
	ID                      *domain.ID        `json:"id,omitempty"`
	Blockchain              string            `json:"blockchain"`
	Standard                string            `json:"standard"`
	Address                 string            `json:"address"`
	Symbol                  string            `json:"symbol"`
	Decimals                uint32            `json:"decimals"`
	Name                    string            `json:"name"`
	Metadata                map[string]string `json:"metadata,omitempty"`
	TransferRequestPolicyID *domain.ID        `json:"transfer_request_policy_id,omitempty"`
	ConfigsRequestPolicyID  *domain.ID        `json:"configs_request_policy_id,omitempty"`
}

func (in AccountInput) toAccount(existing domain.Account, now int64) domain.Account {
	existing.Blockchain = in.Blockchain
	existing.Standard = in.Standard
	existing.Address = in.Address
	existing.Symbol = in.Symbol
	existing.Decimals = in.Decimals
	existing.Name = in.Name
	existing.Metadata = in.Metadata
	existing.TransferRequestPolicyID = in.TransferRequestPolicyID
	existing.ConfigsRequestPolicyID = in.ConfigsRequestPolicyID
	existing.LastModificationTimestamp = now
	return existing
}

// AddAccountHandler implements the AddAccount operation kind.
type AddAccountHandler struct {
	noopOnCreated
	accounts     *repo.Accounts
	policyExists func(domain.ID) bool
}

// NewAddAccountHandler builds an AddAccountHandler.
func NewAddAccountHandler(accounts *repo.Accounts, policyExists func(domain.ID) bool) *AddAccountHandler {
	return &AddAccountHandler{accounts: accounts, policyExists: policyExists}
}

func (h *AddAccountHandler) Type() domain.RequestOperationType { return domain.OperationAddAccount }

func (h *AddAccountHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input AccountInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode add_account input: %w", err)
	}
	account := input.toAccount(domain.Account{ID: domain.NewID()}, params.Now.UnixNano())
	if err := account.Validate(h.policyExists); err != nil {
		return domain.Request{}, err
	}
	return NewRequest(domain.OperationAddAccount, account.ID, params), nil
}

func (h *AddAccountHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	var input AccountInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: decode add_account input: %w", err)
	}
	account := input.toAccount(domain.Account{ID: req.Operation.TargetID}, req.CreatedAt)
	if err := h.accounts.Insert(ctx, account); err != nil {
		return ExecuteOutcome{}, err
	}
	output, _ := json.Marshal(account)
	return Completed(output), nil
}

// EditAccountHandler implements the EditAccount operation kind.
type EditAccountHandler struct {
	noopOnCreated
	accounts     *repo.Accounts
	policyExists func(domain.ID) bool
}

// NewEditAccountHandler builds an EditAccountHandler.
func NewEditAccountHandler(accounts *repo.Accounts, policyExists func(domain.ID) bool) *EditAccountHandler {
	return &EditAccountHandler{accounts: accounts, policyExists: policyExists}
}

func (h *EditAccountHandler) Type() domain.RequestOperationType { return domain.OperationEditAccount }

func (h *EditAccountHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input AccountInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode edit_account input: %w", err)
	}
	if input.ID == nil {
		return domain.Request{}, domain.ValidationErrorf("account", "id", "required for edit_account")
	}
	existing, err := h.accounts.Get(ctx, *input.ID)
	if err != nil {
		return domain.Request{}, err
	}
	updated := input.toAccount(existing, params.Now.UnixNano())
	if err := updated.Validate(h.policyExists); err != nil {
		return domain.Request{}, err
	}
	return NewRequest(domain.OperationEditAccount, existing.ID, params), nil
}

func (h *EditAccountHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	var input AccountInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: decode edit_account input: %w", err)
	}
	existing, err := h.accounts.Get(ctx, req.Operation.TargetID)
	if err != nil {
		return ExecuteOutcome{}, err
	}
	updated := input.toAccount(existing, req.CreatedAt)
	if err := h.accounts.Insert(ctx, updated); err != nil {
		return ExecuteOutcome{}, err
	}
	output, _ := json.Marshal(updated)
	return Completed(output), nil
}
