package requestsvc

import (
	"context"
	"encoding/json"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/operations"
	"github.com/orbit-station/station/internal/station/repo"
)

// membership implements policy.Membership against the concrete repository
// layer. Group expansion scans the full user list rather than maintaining
// a reverse user-group index — acceptable at the station's scale (low
// thousands of users), matching the reference's own in-memory repository
// iteration in models/user.rs's group lookups.
type membership struct {
	ctx        context.Context
	users      *repo.Users
	addressBook *repo.AddressBook
	accounts   *repo.Accounts
}

func newMembership(ctx context.Context, users *repo.Users, addressBook *repo.AddressBook, accounts *repo.Accounts) membership {
	return membership{ctx: ctx, users: users, addressBook: addressBook, accounts: accounts}
}

func (m membership) ActiveUsersInGroup(group domain.ID) []domain.ID {
	all, err := m.users.List(m.ctx)
	if err != nil {
		return nil
	}
	var out []domain.ID
	for _, u := range all {
		if u.IsActive() && u.InGroup(group) {
			out = append(out, u.ID)
		}
	}
	return out
}

func (m membership) AllActiveUsers() []domain.ID {
	all, err := m.users.List(m.ctx)
	if err != nil {
		return nil
	}
	var out []domain.ID
	for _, u := range all {
		if u.IsActive() {
			out = append(out, u.ID)
		}
	}
	return out
}

// IsAllowListed resolves req's destination address from its Transfer
// payload (the only operation kind AllowListed/AllowListedByMetadata rules
// apply to in practice) and checks the address book, optionally requiring
// metadata[metadataKey] == metadataValue.
func (m membership) IsAllowListed(req domain.Request, metadataKey, metadataValue string) bool {
	if req.Operation.Type != domain.OperationTransfer {
		return false
	}
	var input operations.TransferInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return false
	}
	blockchain := input.Network
	if account, err := m.accounts.Get(m.ctx, input.FromAccount); err == nil {
		blockchain = account.Blockchain
	}
	entries, err := m.addressBook.ByAddress(m.ctx, blockchain, input.ToAddress)
	if err != nil || len(entries) == 0 {
		return false
	}
	if metadataKey == "" {
		return true
	}
	for _, entry := range entries {
		if entry.Metadata[metadataKey] == metadataValue {
			return true
		}
	}
	return false
}
