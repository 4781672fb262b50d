package operations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/repo"
)

// TransferInput is the handler-specific payload of a Transfer Request,
// decoded from domain.Operation.Input.
type TransferInput struct {
	FromAccount domain.ID         `json:"from_account"`
	ToAddress   string            `json:"to_address"`
	Amount      string            `json:"amount"`
	Network     string            `json:"network,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// TransferOutput records the Transfer entity id created by Execute.
type TransferOutput struct {
	TransferID domain.ID `json:"transfer_id"`
}

// PolicyResolver resolves the PolicySnapshot that should govern a Transfer
// against fromAccount's own transfer_request_policy_id (or the station's
// default when unset), since a Transfer's applicable policy is scoped to
// the account rather than a generic operation-type PolicyBinding (§4.6.1
// "resolves the account's transfer_request_policy_id... into the
// snapshot").
type PolicyResolver func(ctx context.Context, requester domain.ID, account domain.Account) (domain.PolicySnapshot, error)

// TransferHandler implements the Transfer operation kind (§4.6.1).
type TransferHandler struct {
	noopOnCreated

	accounts  *repo.Accounts
	transfers *repo.Transfers
	resolve   PolicyResolver
}

// NewTransferHandler builds a TransferHandler.
func NewTransferHandler(accounts *repo.Accounts, transfers *repo.Transfers, resolve PolicyResolver) *TransferHandler {
	return &TransferHandler{accounts: accounts, transfers: transfers, resolve: resolve}
}

func (h *TransferHandler) Type() domain.RequestOperationType { return domain.OperationTransfer }

// Build validates that from_account exists and resolves the policy
// snapshot that will govern the request. It does not create a Transfer
// entity yet (§4.6.1 "Does not create a Transfer entity yet").
func (h *TransferHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input TransferInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode transfer input: %w", err)
	}

	account, err := h.accounts.Get(ctx, input.FromAccount)
	if err != nil {
		return domain.Request{}, fmt.Errorf("operations: from_account %s: %w", input.FromAccount, err)
	}

	snapshot, err := h.resolve(ctx, params.RequestedBy, account)
	if err != nil {
		return domain.Request{}, err
	}
	params.PolicySnapshot = snapshot

	return NewRequest(domain.OperationTransfer, account.ID, params), nil
}

// Execute creates the Transfer entity in status Created and returns
// Completed; a separate transfer execution job drives it through
// Processing to its terminal state (§4.6.1, §5).
func (h *TransferHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	var input TransferInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: decode transfer input: %w", err)
	}

	transfer := domain.Transfer{
		ID:            domain.NewID(),
		InitiatorUser: req.RequestedBy,
		FromAccount:   input.FromAccount,
		ToAddress:     input.ToAddress,
		Amount:        input.Amount,
		Network:       input.Network,
		Status:        domain.TransferStatus{Kind: domain.TransferCreated},
		RequestID:     req.ID,
		Metadata:      input.Metadata,
		CreatedAt:     req.CreatedAt,
	}
	if err := h.transfers.Upsert(ctx, transfer); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: persist transfer: %w", err)
	}

	output, err := json.Marshal(TransferOutput{TransferID: transfer.ID})
	if err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: encode transfer output: %w", err)
	}
	return Completed(output), nil
}
