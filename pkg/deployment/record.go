// Package deployment defines the canary deployment record: the persisted
// unit of state the manager orchestrates and the router reads its traffic
// split from.
package deployment

import (
	"time"

	"github.com/google/uuid"
)

// State is a deployment lifecycle state.
type State string

const (
	// StatePending is the just-created state. It exists for audit
	// granularity only; records transition to active before any external
	// actor observes them.
	StatePending State = "PENDING"

	// StateActive means the canary is serving its traffic split.
	StateActive State = "ACTIVE"

	// StatePromoting and StateRollingBack are the in-flight transition
	// states toward their respective terminals.
	StatePromoting   State = "PROMOTING"
	StateRollingBack State = "ROLLING_BACK"

	// Terminal states. Records in these states are immutable.
	StatePromoted   State = "PROMOTED"
	StateRolledBack State = "ROLLED_BACK"
	StateExpired    State = "EXPIRED"
)

// Terminal reports whether the state permits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StatePromoted, StateRolledBack, StateExpired:
		return true
	}
	return false
}

// Verdict values recorded in decision entries. Lifecycle entries such as
// manual rollbacks carry no verdict.
const (
	VerdictPass = "pass"
	VerdictFail = "fail"
)

// DecisionEntry is one append-only audit record of an automated or manual
// decision about a deployment. Entries are never edited retroactively.
type DecisionEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Verdict   string    `json:"verdict"`
	Reason    string    `json:"reason"`

	// SampleSize is the number of canary observations the verdict was
	// computed over. Zero for lifecycle entries that carry no verdict.
	SampleSize int64 `json:"sample_size,omitempty"`
}

// Record is a single canary deployment.
type Record struct {
	// ID is an opaque unique token generated at creation, never reused.
	ID string `json:"id"`

	// AgentName references the agent spec this deployment belongs to.
	AgentName string `json:"agent_name"`

	// State is the current lifecycle state.
	State State `json:"state"`

	// CanaryConfig is the configuration under test, pinned at creation.
	CanaryConfig []byte `json:"canary_config"`

	// TrafficSplitPercent is the share of requests routed to the canary,
	// 1-100. Only meaningful (and only mutable) while the record is active.
	TrafficSplitPercent int `json:"traffic_split_percent"`

	// MinSampleSize is the minimum number of canary requests required
	// before an automated verdict may be reached.
	MinSampleSize int64 `json:"min_sample_size"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// DecisionLog is the append-only audit trail of verdicts and
	// transitions for this deployment.
	DecisionLog []DecisionEntry `json:"decision_log"`

	// LastEvaluatedAt guards against double-appending decisions when
	// redundant evaluate triggers fire for the same metrics snapshot.
	LastEvaluatedAt time.Time `json:"last_evaluated_at,omitempty"`
}

// New creates a pending record for the given agent and canary config.
func New(agentName string, canaryConfig []byte, splitPercent int, duration time.Duration, minSampleSize int64) *Record {
	now := time.Now().UTC()

	return &Record{
		ID:                  uuid.NewString(),
		AgentName:           agentName,
		State:               StatePending,
		CanaryConfig:        canaryConfig,
		TrafficSplitPercent: splitPercent,
		MinSampleSize:       minSampleSize,
		CreatedAt:           now,
		ExpiresAt:           now.Add(duration),
	}
}

// Expired reports whether the record's lifetime has elapsed as of now.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Age returns how long ago the record was created.
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}

// AppendDecision adds a lifecycle entry to the decision log.
func (r *Record) AppendDecision(verdict, reason string) {
	r.DecisionLog = append(r.DecisionLog, DecisionEntry{
		Timestamp: time.Now().UTC(),
		Verdict:   verdict,
		Reason:    reason,
	})
}

// AppendEvaluation adds a verdict entry, recording the sample count the
// verdict was computed over.
func (r *Record) AppendEvaluation(verdict, reason string, sampleSize int64) {
	r.DecisionLog = append(r.DecisionLog, DecisionEntry{
		Timestamp:  time.Now().UTC(),
		Verdict:    verdict,
		Reason:     reason,
		SampleSize: sampleSize,
	})
}

// LastVerdict returns the most recent pass or fail evaluation entry,
// skipping lifecycle entries that carry no verdict. Returns nil if the
// deployment has never been evaluated.
func (r *Record) LastVerdict() *DecisionEntry {
	for i := len(r.DecisionLog) - 1; i >= 0; i-- {
		if r.DecisionLog[i].Verdict != "" {
			return &r.DecisionLog[i]
		}
	}

	return nil
}

// LastDecision returns the most recent decision entry, or nil if none.
func (r *Record) LastDecision() *DecisionEntry {
	if len(r.DecisionLog) == 0 {
		return nil
	}
	return &r.DecisionLog[len(r.DecisionLog)-1]
}

// Clone returns a deep copy so callers can't mutate stored state through
// shared slices.
func (r *Record) Clone() *Record {
	clone := *r
	clone.CanaryConfig = append([]byte(nil), r.CanaryConfig...)
	clone.DecisionLog = append([]DecisionEntry(nil), r.DecisionLog...)
	return &clone
}

// validTransitions enumerates the legal state machine edges.
var validTransitions = map[State][]State{
	StatePending:     {StateActive},
	StateActive:      {StatePromoting, StateRollingBack, StateExpired},
	StatePromoting:   {StatePromoted, StateRollingBack},
	StateRollingBack: {StateRolledBack},
}

// CanTransition reports whether moving from the record's current state to
// next is a legal edge.
func (r *Record) CanTransition(next State) bool {
	for _, allowed := range validTransitions[r.State] {
		if allowed == next {
			return true
		}
	}
	return false
}
