// Package id generates the identifiers of scopes, physical transactions and
// stored records. Ids are UUIDv7, so they sort in creation order.
package id

import (
	"errors"

	"github.com/google/uuid"
)

// ID is a UUID.
type ID = uuid.UUID

// ErrNil is returned by Parse for the all-zero UUID.
var ErrNil = errors.New("id must not be the nil UUID")

// New generates a new UUIDv7.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		// only fails when the random source does
		return uuid.New()
	}
	return v
}

// Parse converts s to an ID. The nil UUID is rejected.
func Parse(s string) (ID, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, err
	}
	if v == uuid.Nil {
		return uuid.Nil, ErrNil
	}
	return v, nil
}
