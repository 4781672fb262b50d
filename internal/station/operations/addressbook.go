package operations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/repo"
)

// AddressBookEntryInput is the shared payload of
// AddAddressBookEntry/EditAddressBookEntry.
type AddressBookEntryInput struct {
	ID           *domain.ID        `json:"id,omitempty"`
	AddressOwner string            `json:"address_owner"`
	Address      string            `json:"address"`
	Blockchain   string            `json:"blockchain"`
	Standard     string            `json:"standard"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (in AddressBookEntryInput) toEntry(existing domain.AddressBookEntry, now int64) domain.AddressBookEntry {
	existing.AddressOwner = in.AddressOwner
	existing.Address = in.Address
	existing.Blockchain = in.Blockchain
	existing.Standard = in.Standard
	existing.Metadata = in.Metadata
	existing.LastModificationTimestamp = now
	return existing
}

// AddAddressBookEntryHandler implements AddAddressBookEntry.
type AddAddressBookEntryHandler struct {
	noopOnCreated
	entries *repo.AddressBook
}

// NewAddAddressBookEntryHandler builds an AddAddressBookEntryHandler.
func NewAddAddressBookEntryHandler(entries *repo.AddressBook) *AddAddressBookEntryHandler {
	return &AddAddressBookEntryHandler{entries: entries}
}

func (h *AddAddressBookEntryHandler) Type() domain.RequestOperationType {
	return domain.OperationAddAddressBookEntry
}

func (h *AddAddressBookEntryHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input AddressBookEntryInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode add_address_book_entry input: %w", err)
	}
	entry := input.toEntry(domain.AddressBookEntry{ID: domain.NewID()}, params.Now.UnixNano())
	if err := entry.Validate(); err != nil {
		return domain.Request{}, err
	}
	return NewRequest(domain.OperationAddAddressBookEntry, entry.ID, params), nil
}

func (h *AddAddressBookEntryHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	var input AddressBookEntryInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: decode add_address_book_entry input: %w", err)
	}
	entry := input.toEntry(domain.AddressBookEntry{ID: req.Operation.TargetID}, req.CreatedAt)
	if err := h.entries.Insert(ctx, entry); err != nil {
		return ExecuteOutcome{}, err
	}
	output, _ := json.Marshal(entry)
	return Completed(output), nil
}

// EditAddressBookEntryHandler implements EditAddressBookEntry.
type EditAddressBookEntryHandler struct {
	noopOnCreated
	entries *repo.AddressBook
}

// NewEditAddressBookEntryHandler builds an EditAddressBookEntryHandler.
func NewEditAddressBookEntryHandler(entries *repo.AddressBook) *EditAddressBookEntryHandler {
	return &EditAddressBookEntryHandler{entries: entries}
}

func (h *EditAddressBookEntryHandler) Type() domain.RequestOperationType {
	return domain.OperationEditAddressBookEntry
}

func (h *EditAddressBookEntryHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input AddressBookEntryInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode edit_address_book_entry input: %w", err)
	}
	if input.ID == nil {
		return domain.Request{}, domain.ValidationErrorf("address_book_entry", "id", "required for edit_address_book_entry")
	}
	existing, err := h.entries.Get(ctx, *input.ID)
	if err != nil {
		return domain.Request{}, err
	}
	updated := input.toEntry(existing, params.Now.UnixNano())
	if err := updated.Validate(); err != nil {
		return domain.Request{}, err
	}
	return NewRequest(domain.OperationEditAddressBookEntry, existing.ID, params), nil
}

func (h *EditAddressBookEntryHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	var input AddressBookEntryInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: decode edit_address_book_entry input: %w", err)
	}
	existing, err := h.entries.Get(ctx, req.Operation.TargetID)
	if err != nil {
		return ExecuteOutcome{}, err
	}
	updated := input.toEntry(existing, req.CreatedAt)
	if err := h.entries.Insert(ctx, updated); err != nil {
		return ExecuteOutcome{}, err
	}
	output, _ := json.Marshal(updated)
	return Completed(output), nil
}

// RemoveAddressBookEntryHandler implements RemoveAddressBookEntry.
type RemoveAddressBookEntryHandler struct {
	noopOnCreated
	entries *repo.AddressBook
}

// NewRemoveAddressBookEntryHandler builds a RemoveAddressBookEntryHandler.
func NewRemoveAddressBookEntryHandler(entries *repo.AddressBook) *RemoveAddressBookEntryHandler {
	return &RemoveAddressBookEntryHandler{entries: entries}
}

func (h *RemoveAddressBookEntryHandler) Type() domain.RequestOperationType {
	return domain.OperationRemoveAddressBookEntry
}

func (h *RemoveAddressBookEntryHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input AddressBookEntryInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode remove_address_book_entry input: %w", err)
	}
	if input.ID == nil {
		return domain.Request{}, domain.ValidationErrorf("address_book_entry", "id", "required for remove_address_book_entry")
	}
	if _, err := h.entries.Get(ctx, *input.ID); err != nil {
		return domain.Request{}, err
	}
	return NewRequest(domain.OperationRemoveAddressBookEntry, *input.ID, params), nil
}

func (h *RemoveAddressBookEntryHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	if err := h.entries.Remove(ctx, req.Operation.TargetID); err != nil {
		return ExecuteOutcome{}, err
	}
	return Completed(nil), nil
}
