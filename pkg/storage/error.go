package storage

import "fmt"

// NotFoundError is returned when a deployment record or baseline doesn't
// exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "deployment not found"
	}
	return "deployment not found: " + e.ID
}

// ConflictError is returned when creating a deployment would violate the
// one-live-deployment-per-agent invariant.
type ConflictError struct {
	AgentName  string
	ExistingID string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("agent %s already has a live deployment: %s", e.AgentName, e.ExistingID)
}
