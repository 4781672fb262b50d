package repo

import (
	"context"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/store"
)

// AddressBook is the repository of domain.AddressBookEntry, indexed by
// (blockchain, address) so the AllowListed policy rule can resolve a
// transfer's destination address in O(1) (§4.4 "AllowListed").
type AddressBook struct {
	repo      *store.Repository[domain.AddressBookEntry]
	byAddress *store.Index[string]
}

// NewAddressBook builds an AddressBook repository over backend.
func NewAddressBook(backend store.Backend) *AddressBook {
	b := &AddressBook{
		repo:      store.NewRepository[domain.AddressBookEntry]("address_book", backend, nil),
		byAddress: store.NewIndex[string](),
	}
	b.repo.AddObserver(b)
	return b
}

func addressKey(blockchain, address string) string { return blockchain + ":" + address }

func (b *AddressBook) AfterInsert(_ context.Context, entry domain.AddressBookEntry) {
	b.byAddress.Add(addressKey(entry.Blockchain, entry.Address), entry.EntityKey())
}

func (b *AddressBook) AfterRemove(_ context.Context, entry domain.AddressBookEntry) {
	b.byAddress.Remove(addressKey(entry.Blockchain, entry.Address), entry.EntityKey())
}

// Rebuild replays every persisted entry into byAddress, restoring
// IsAllowListed/ByAddress lookups after a restart.
func (b *AddressBook) Rebuild(ctx context.Context) error {
	all, err := b.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, entry := range all {
		b.byAddress.Add(addressKey(entry.Blockchain, entry.Address), entry.EntityKey())
	}
	return nil
}

func (b *AddressBook) Get(ctx context.Context, id domain.ID) (domain.AddressBookEntry, error) {
	return b.repo.Get(ctx, id.String())
}

func (b *AddressBook) Insert(ctx context.Context, entry domain.AddressBookEntry) error {
	return b.repo.Insert(ctx, entry)
}

func (b *AddressBook) Remove(ctx context.Context, id domain.ID) error {
	return b.repo.Remove(ctx, id.String())
}

func (b *AddressBook) List(ctx context.Context) ([]domain.AddressBookEntry, error) {
	return b.repo.List(ctx)
}

// ByAddress resolves every entry recorded for (blockchain, address).
func (b *AddressBook) ByAddress(ctx context.Context, blockchain, address string) ([]domain.AddressBookEntry, error) {
	ids := b.byAddress.Lookup(addressKey(blockchain, address))
	out := make([]domain.AddressBookEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := b.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// IsAllowListed reports whether address is a known address-book entry on
// blockchain, the core AllowListed policy predicate.
func (b *AddressBook) IsAllowListed(ctx context.Context, blockchain, address string) (bool, error) {
	entries, err := b.ByAddress(ctx, blockchain, address)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}
