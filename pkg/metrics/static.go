package metrics

import (
	"context"
	"sync"
	"time"
)

// StaticAccessor is a deterministic in-memory Accessor used for tests and
// for the sandbox mode where no Prometheus instance is available.
type StaticAccessor struct {
	mu        sync.RWMutex
	snapshots map[staticKey]Snapshot
}

type staticKey struct {
	agent   string
	variant Variant
}

// NewStaticAccessor creates an empty static accessor. Queries for unset
// agent/variant pairs return the zero-sample sentinel.
func NewStaticAccessor() *StaticAccessor {
	return &StaticAccessor{
		snapshots: make(map[staticKey]Snapshot),
	}
}

// Set registers the snapshot returned for the agent/variant pair.
func (a *StaticAccessor) Set(agentName string, variant Variant, snap Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshots[staticKey{agent: agentName, variant: variant}] = snap
}

// Query returns the registered snapshot, or a zero-sample Snapshot if none
// was set.
func (a *StaticAccessor) Query(_ context.Context, agentName string, variant Variant, window time.Duration) (Snapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap, ok := a.snapshots[staticKey{agent: agentName, variant: variant}]
	if !ok {
		return Snapshot{Window: window}, nil
	}

	if snap.Window == 0 {
		snap.Window = window
	}

	return snap, nil
}
