// Package domain defines the station's entities: users, accounts, address
// book entries, assets, transfers, permissions, policies, and requests.
package domain

import "github.com/google/uuid"

// ID is the opaque 16-byte identifier shared by every entity in the station.
type ID = uuid.UUID

// NewID generates a fresh random ID.
func NewID() ID {
	return uuid.New()
}

// ParseID parses a string-form ID.
func ParseID(s string) (ID, error) {
	return uuid.Parse(s)
}

// ZeroID is the unset value of ID.
var ZeroID ID
