// Package metrics provides read-only access to per-agent request outcome
// metrics, partitioned by deployment variant (baseline vs canary).
//
// The package is a query adapter only: writes happen in the request path
// owned by the orchestrator, which exports counters and histograms to
// Prometheus. Accessor implementations answer "over the last window, what
// was the success rate, P95 latency, and cost for agent A, variant V?".
package metrics

import (
	"context"
	"time"
)

// Variant selects which side of a traffic split a query is about.
// It is a label value passed through to the metrics backend, not a
// separate code path.
type Variant string

const (
	// VariantBaseline is the currently-promoted, fully-trafficked config.
	VariantBaseline Variant = "baseline"

	// VariantCanary is the config under test behind the traffic split.
	VariantCanary Variant = "canary"
)

// Snapshot is an aggregate view of an agent's recent request outcomes.
//
// A Snapshot with Count == 0 is the zero-sample sentinel: it means "no
// observations in the window", never "everything passed". Callers must
// check Count against their minimum sample size before trusting the rates.
type Snapshot struct {
	// Count is the number of requests observed in the window.
	Count int64

	// SuccessRate is the fraction of requests that succeeded, in [0, 1].
	SuccessRate float64

	// P95LatencyMs is the 95th percentile request latency in milliseconds.
	P95LatencyMs float64

	// CostCentsTotal is the total estimated spend over the window, in cents.
	CostCentsTotal float64

	// Window is the time span the snapshot aggregates over.
	Window time.Duration
}

// WindowHours returns the snapshot window in hours, floored at a minute's
// worth so cost-per-hour math never divides by zero.
func (s Snapshot) WindowHours() float64 {
	w := s.Window
	if w < time.Minute {
		w = time.Minute
	}
	return w.Hours()
}

// Accessor answers aggregate queries over an external counters/histograms
// store. Implementations perform no writes.
type Accessor interface {
	// Query returns a Snapshot for the given agent and variant over the
	// given trailing window. A window of zero uses the implementation's
	// default. Zero samples yield a zero-value Snapshot, not an error.
	Query(ctx context.Context, agentName string, variant Variant, window time.Duration) (Snapshot, error)
}
