package types

import "github.com/google/uuid"

// FieldSetID identifies one persisted FieldSet snapshot row.
// UUIDv7 time-ordering keeps snapshot inserts clustered in B-tree indexes.
type FieldSetID string

// NewFieldSetID generates a UUIDv7 snapshot identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewFieldSetID() FieldSetID {
	return FieldSetID(uuid.Must(uuid.NewV7()).String())
}

// ParseFieldSetID validates and converts a string to FieldSetID.
func ParseFieldSetID(s string) (FieldSetID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return FieldSetID(s), nil
}
