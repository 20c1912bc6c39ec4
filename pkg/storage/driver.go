// Package storage
package storage

import (
	"context"

	"github.com/arcanumlabs/canary/pkg/deployment"
)

// Driver defines the interface for persisting deployment records and the
// per-agent baseline configs. It is the only mutable shared resource in the
// system: all writes to a given record are serialized by the driver, and
// reads reflect the latest committed state.
type Driver interface {
	// Create inserts a new record. The no-other-live-deployment check and
	// the insert are atomic as a unit: if another non-terminal record
	// exists for the same agent, Create fails with ConflictError and
	// writes nothing.
	Create(ctx context.Context, rec *deployment.Record) error

	// Get retrieves a record by id.
	Get(ctx context.Context, id string) (*deployment.Record, error)

	// Update applies mutate to the record under the driver's write lock
	// and persists the result. If mutate returns an error the record is
	// left unchanged and the error is returned verbatim. Returns the
	// updated record.
	Update(ctx context.Context, id string, mutate func(*deployment.Record) error) (*deployment.Record, error)

	// List returns records newest first. A zero-value filter returns all
	// records; a filter with a State returns only records in that state.
	List(ctx context.Context, filter Filter) ([]*deployment.Record, error)

	// ActiveByAgent returns the agent's ACTIVE record, or NotFoundError.
	ActiveByAgent(ctx context.Context, agentName string) (*deployment.Record, error)

	// SetBaseline persists config as the agent's baseline of record.
	SetBaseline(ctx context.Context, agentName string, config []byte) error

	// GetBaseline returns the agent's baseline of record, or NotFoundError
	// if no promotion has ever happened for the agent.
	GetBaseline(ctx context.Context, agentName string) ([]byte, error)

	// Close closes the store and releases any resources.
	Close() error
}

// Filter narrows List results.
type Filter struct {
	State     deployment.State
	AgentName string
}
