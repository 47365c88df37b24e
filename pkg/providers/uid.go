package providers

import "github.com/google/uuid"

// NewUID returns a fresh unique identifier for a configured provider
// account. Implementations should generate a UID once at construction and
// carry it through Serialize so the account keeps its identity across
// restarts.
func NewUID() string {
	return uuid.NewString()
}
