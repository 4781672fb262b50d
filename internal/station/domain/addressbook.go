package domain

// AddressBookEntry bounds, mirrored from the reference's model constants.
const (
	AddressBookAddressMin      = 1
	AddressBookAddressMax      = 255
	AddressBookAddressOwnerMin = 1
	AddressBookAddressOwnerMax = 255
)

// AddressBookEntry records a known counterparty address, consulted by the
// AllowListed and AllowListedByMetadata policy rules.
type AddressBookEntry struct {
	ID                        ID                `json:"id"`
	AddressOwner              string            `json:"address_owner"`
	Address                   string            `json:"address"`
	Blockchain                string            `json:"blockchain"`
	Standard                  string            `json:"standard"`
	Metadata                  map[string]string `json:"metadata,omitempty"`
	LastModificationTimestamp int64             `json:"last_modification_timestamp"`
}

// Validate checks AddressBookEntry's structural invariants.
func (e AddressBookEntry) Validate() error {
	if len(e.AddressOwner) < AddressBookAddressOwnerMin || len(e.AddressOwner) > AddressBookAddressOwnerMax {
		return ValidationErrorf("address_book_entry", "address_owner", "length must be between %d and %d", AddressBookAddressOwnerMin, AddressBookAddressOwnerMax)
	}
	if len(e.Address) < AddressBookAddressMin || len(e.Address) > AddressBookAddressMax {
		return ValidationErrorf("address_book_entry", "address", "length must be between %d and %d", AddressBookAddressMin, AddressBookAddressMax)
	}
	return nil
}

// HasMetadata reports whether the entry carries metadata key=value.
func (e AddressBookEntry) HasMetadata(key, value string) bool {
	v, ok := e.Metadata[key]
	return ok && v == value
}
