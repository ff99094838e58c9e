// Package uuid provides time-ordered identifiers for CRM records.
// UUID v7 sorts by creation time, which keeps ids and created_at in the same order.
package uuid

import (
	"fmt"

	googleuuid "github.com/google/uuid"
)

// UUID is a v7 identifier.
type UUID = googleuuid.UUID

// NewV7 generates a new UUID v7. It panics only if the system random source fails.
func NewV7() UUID {
	return googleuuid.Must(googleuuid.NewV7())
}

// NewString returns a new UUID v7 in canonical string form.
func NewString() string {
	return NewV7().String()
}

// Parse validates s as a UUID and returns it in canonical lower-case form.
func Parse(s string) (string, error) {
	u, err := googleuuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse uuid %q: %w", s, err)
	}
	return u.String(), nil
}
