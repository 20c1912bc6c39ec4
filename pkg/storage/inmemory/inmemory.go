// Package inmemory provides a map-backed storage driver used for tests and
// ephemeral runs.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/arcanumlabs/canary/pkg/deployment"
	"github.com/arcanumlabs/canary/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu serializes all writes; the per-agent conflict check and insert
	// in Create happen under the same critical section.
	mu sync.RWMutex

	// records maps deployment id to record.
	records map[string]*deployment.Record

	// baselines maps agent name to its promoted baseline config.
	baselines map[string][]byte
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		records:   make(map[string]*deployment.Record),
		baselines: make(map[string][]byte),
	}
}

// Create inserts a record, enforcing the one-live-deployment-per-agent
// invariant atomically.
func (d *Driver) Create(_ context.Context, rec *deployment.Record) error {
	if rec == nil {
		return errors.New("cannot store nil record")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.records {
		if existing.AgentName == rec.AgentName && !existing.State.Terminal() {
			return storage.ConflictError{
				AgentName:  rec.AgentName,
				ExistingID: existing.ID,
			}
		}
	}

	d.records[rec.ID] = rec.Clone()
	return nil
}

// Get retrieves a record by id.
func (d *Driver) Get(_ context.Context, id string) (*deployment.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.records[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	return rec.Clone(), nil
}

// Update applies mutate under the write lock and persists the result.
func (d *Driver) Update(_ context.Context, id string, mutate func(*deployment.Record) error) (*deployment.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	working := rec.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}

	d.records[id] = working
	return working.Clone(), nil
}

// List returns matching records, newest first.
func (d *Driver) List(_ context.Context, filter storage.Filter) ([]*deployment.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*deployment.Record, 0, len(d.records))
	for _, rec := range d.records {
		if filter.State != "" && rec.State != filter.State {
			continue
		}
		if filter.AgentName != "" && rec.AgentName != filter.AgentName {
			continue
		}
		out = append(out, rec.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

// ActiveByAgent returns the agent's ACTIVE record.
func (d *Driver) ActiveByAgent(_ context.Context, agentName string) (*deployment.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, rec := range d.records {
		if rec.AgentName == agentName && rec.State == deployment.StateActive {
			return rec.Clone(), nil
		}
	}

	return nil, storage.NotFoundError{}
}

// SetBaseline persists the agent's baseline config.
func (d *Driver) SetBaseline(_ context.Context, agentName string, config []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.baselines[agentName] = append([]byte(nil), config...)
	return nil
}

// GetBaseline returns the agent's baseline config.
func (d *Driver) GetBaseline(_ context.Context, agentName string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	config, ok := d.baselines[agentName]
	if !ok {
		return nil, storage.NotFoundError{}
	}

	return append([]byte(nil), config...), nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
