package common

import (
	"github.com/google/uuid"
)

// NewRecordID generates a unique, time-sortable record identifier.
// UUIDv7 embeds a millisecond timestamp in the high bits, so lexical
// ordering of IDs matches creation order.
func NewRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Entropy exhaustion only; a random ID still satisfies uniqueness
		return uuid.New().String()
	}
	return id.String()
}
