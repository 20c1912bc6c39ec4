// Package canary orchestrates the lifecycle of canary deployments: creating
// them against validated agent specs, evaluating quality gates over live
// metrics, promoting winners to baseline, and rolling back or expiring the
// rest. All state changes go through the storage driver's atomic update so
// concurrent triggers (CLI, API, sweeper) cannot corrupt a record.
package canary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/arcanumlabs/canary/pkg/agentspec"
	"github.com/arcanumlabs/canary/pkg/deployment"
	"github.com/arcanumlabs/canary/pkg/eventstream"
	"github.com/arcanumlabs/canary/pkg/eventstream/nop"
	"github.com/arcanumlabs/canary/pkg/gate"
	"github.com/arcanumlabs/canary/pkg/metrics"
	"github.com/arcanumlabs/canary/pkg/storage"
)

const (
	// DefaultSplitPercent is the canary traffic share when none is given.
	DefaultSplitPercent = 10

	// DefaultDuration is the canary observation window when none is given.
	DefaultDuration = 4 * time.Hour

	// DefaultMinSampleSize is the minimum canary request count before an
	// automated verdict may be reached.
	DefaultMinSampleSize = 10

	// DefaultEvaluateCooldown bounds how often redundant evaluate triggers
	// append decisions for the same metrics snapshot.
	DefaultEvaluateCooldown = 10 * time.Second
)

// Config is the configuration options for the deployment manager.
type Config struct {
	// Driver is the storage backend for deployment records and baselines.
	Driver storage.Driver

	// Specs resolves and validates agent specifications.
	Specs *agentspec.Store

	// Accessor queries live metrics for baseline and canary variants.
	Accessor metrics.Accessor

	// Publisher receives lifecycle events. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	// Window is the metrics window evaluations query over.
	Window time.Duration

	// EvaluateCooldown is the idempotence window for Evaluate.
	EvaluateCooldown time.Duration

	// Metrics is the optional lifecycle collector bundle.
	Metrics *Metrics

	// Clock overrides time.Now, for tests.
	Clock func() time.Time

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Manager coordinates canary deployments for all agents.
type Manager struct {
	driver    storage.Driver
	specs     *agentspec.Store
	accessor  metrics.Accessor
	publisher eventstream.Publisher
	window    time.Duration
	cooldown  time.Duration
	metrics   *Metrics
	now       func() time.Time
	logger    *zap.Logger
}

// NewManager creates a new deployment manager.
func NewManager(c *Config) (*Manager, error) {
	if c.Driver == nil {
		return nil, errors.New("storage driver is required")
	}
	if c.Specs == nil {
		return nil, errors.New("agent spec store is required")
	}
	if c.Accessor == nil {
		return nil, errors.New("metrics accessor is required")
	}
	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}
	if c.Window == 0 {
		c.Window = time.Hour
	}
	if c.EvaluateCooldown == 0 {
		c.EvaluateCooldown = DefaultEvaluateCooldown
	}
	if c.Clock == nil {
		c.Clock = func() time.Time { return time.Now().UTC() }
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	return &Manager{
		driver:    c.Driver,
		specs:     c.Specs,
		accessor:  c.Accessor,
		publisher: c.Publisher,
		window:    c.Window,
		cooldown:  c.EvaluateCooldown,
		metrics:   c.Metrics,
		now:       c.Clock,
		logger:    c.Logger,
	}, nil
}

// CreateOptions carries optional parameters for Create. Zero values fall
// back to the manager defaults, except Duration when ExpireImmediately
// is set.
type CreateOptions struct {
	// SplitPercent is the canary traffic share, 1-100.
	SplitPercent int

	// Duration is how long the canary may run before expiring.
	Duration time.Duration

	// ExpireImmediately creates a deployment that is already past its
	// expiry, for drills and sweeper verification.
	ExpireImmediately bool

	// MinSampleSize overrides the minimum canary request count.
	MinSampleSize int64
}

// Create validates the canary config and opens a deployment for the agent.
// At most one live deployment may exist per agent; a second create returns
// storage.ConflictError. The returned record is ACTIVE and serving.
func (m *Manager) Create(ctx context.Context, agentName string, canaryConfig []byte, opts CreateOptions) (*deployment.Record, error) {
	if _, err := m.specs.Get(agentName); err != nil {
		return nil, err
	}

	var spec agentspec.AgentSpec
	if err := yaml.Unmarshal(canaryConfig, &spec); err != nil {
		return nil, fmt.Errorf("parsing canary config: %w", err)
	}

	reasons := agentspec.Validate(&spec).Reasons
	for _, finding := range agentspec.SecurityFindings(canaryConfig) {
		reasons = append(reasons, gate.Reason{Kind: gate.KindSecurityViolation, Message: finding})
	}
	if spec.Name != agentName {
		reasons = append(reasons, gate.Reason{
			Kind:    gate.KindSchemaViolation,
			Message: fmt.Sprintf("canary config names agent %q, expected %q", spec.Name, agentName),
		})
	}
	if len(reasons) > 0 {
		return nil, agentspec.ValidationError{Name: agentName, Verdict: gate.NewVerdict(0, reasons)}
	}

	if opts.SplitPercent == 0 {
		opts.SplitPercent = DefaultSplitPercent
	}
	if opts.SplitPercent < 1 || opts.SplitPercent > 100 {
		return nil, fmt.Errorf("traffic split must be between 1 and 100, got %d", opts.SplitPercent)
	}
	if opts.Duration == 0 && !opts.ExpireImmediately {
		opts.Duration = DefaultDuration
	}
	if opts.ExpireImmediately {
		opts.Duration = 0
	}
	if opts.MinSampleSize == 0 {
		opts.MinSampleSize = DefaultMinSampleSize
	}

	rec := deployment.New(agentName, canaryConfig, opts.SplitPercent, opts.Duration, opts.MinSampleSize)

	if err := m.driver.Create(ctx, rec); err != nil {
		return nil, err
	}

	rec, err := m.transition(ctx, rec.ID, deployment.StateActive, "")
	if err != nil {
		return nil, err
	}

	m.metrics.created()
	m.publish(ctx, rec, eventstream.EventTypeDeploymentCreated, nil)
	m.logger.Info("canary deployment created",
		zap.String("agent", agentName),
		zap.String("id", rec.ID),
		zap.Int("split_percent", rec.TrafficSplitPercent),
		zap.Time("expires_at", rec.ExpiresAt),
	)

	return rec, nil
}

// Evaluation is the outcome of a quality gate run against a deployment.
type Evaluation struct {
	Record  *deployment.Record
	Verdict gate.Verdict

	// RolledBack reports whether this evaluation triggered an automatic
	// rollback.
	RolledBack bool

	// Cached reports whether the result was served from the last decision
	// because the call landed inside the cooldown window.
	Cached bool
}

// errEvaluationRecorded signals that a racing Evaluate call already
// appended a decision for the current cooldown window.
var errEvaluationRecorded = errors.New("evaluation already recorded for this window")

// cachedEvaluation returns the prior decision when the record was
// evaluated within the cooldown window, or nil when a fresh evaluation is
// due. An active deployment evaluated within the cooldown necessarily
// passed, or it would have been rolled back already.
func (m *Manager) cachedEvaluation(rec *deployment.Record, now time.Time) *Evaluation {
	last := rec.LastVerdict()
	if last == nil || rec.LastEvaluatedAt.IsZero() || now.Sub(rec.LastEvaluatedAt) >= m.cooldown {
		return nil
	}

	return &Evaluation{Record: rec, Verdict: gate.NewVerdict(last.SampleSize, nil), Cached: true}
}

// concurrentEvaluation serves the decision a racing Evaluate call recorded
// while this call was querying metrics, instead of appending a second
// entry for the same window.
func (m *Manager) concurrentEvaluation(ctx context.Context, id string) (*Evaluation, error) {
	rec, err := m.driver.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.State != deployment.StateActive {
		return nil, InvalidStateError{ID: id, State: string(rec.State), Reason: "a concurrent evaluation settled the deployment"}
	}
	if cached := m.cachedEvaluation(rec, m.now()); cached != nil {
		return cached, nil
	}

	return nil, InvalidStateError{ID: id, State: string(rec.State), Reason: "deployment was evaluated concurrently"}
}

// Evaluate runs the quality gates for the deployment's agent against live
// metrics. A failing verdict rolls the deployment back automatically.
// Calls landing within the cooldown window return the previous decision
// without appending to the log; the guard is re-checked inside the
// driver's atomic update so concurrent calls cannot double-append for the
// same metrics snapshot.
func (m *Manager) Evaluate(ctx context.Context, id string) (*Evaluation, error) {
	rec, err := m.driver.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.State != deployment.StateActive {
		return nil, InvalidStateError{ID: id, State: string(rec.State), Reason: "only active deployments can be evaluated"}
	}

	now := m.now()
	if cached := m.cachedEvaluation(rec, now); cached != nil {
		return cached, nil
	}

	spec, err := m.specs.Get(rec.AgentName)
	if err != nil {
		return nil, err
	}

	canarySnap, err := m.accessor.Query(ctx, rec.AgentName, metrics.VariantCanary, m.window)
	if err != nil {
		return nil, fmt.Errorf("querying canary metrics: %w", err)
	}
	if canarySnap.Count < rec.MinSampleSize {
		m.metrics.evaluation("insufficient_samples")
		return nil, InsufficientSamplesError{ID: id, SampleSize: canarySnap.Count, MinSampleSize: rec.MinSampleSize}
	}

	baselineSnap, err := m.accessor.Query(ctx, rec.AgentName, metrics.VariantBaseline, m.window)
	if err != nil {
		return nil, fmt.Errorf("querying baseline metrics: %w", err)
	}

	findings := agentspec.SecurityFindings(rec.CanaryConfig)
	verdict := gate.EvaluateCanary(spec.Thresholds(), baselineSnap, canarySnap, findings)

	if verdict.Passed {
		rec, err = m.driver.Update(ctx, id, func(r *deployment.Record) error {
			if !r.LastEvaluatedAt.IsZero() && m.now().Sub(r.LastEvaluatedAt) < m.cooldown {
				return errEvaluationRecorded
			}
			r.AppendEvaluation(deployment.VerdictPass, "quality gates passed", canarySnap.Count)
			r.LastEvaluatedAt = now
			return nil
		})
		if errors.Is(err, errEvaluationRecorded) {
			return m.concurrentEvaluation(ctx, id)
		}
		if err != nil {
			return nil, err
		}

		m.metrics.evaluation("pass")
		m.publish(ctx, rec, eventstream.EventTypeDeploymentEvaluated, nil)

		return &Evaluation{Record: rec, Verdict: verdict}, nil
	}

	// Failing verdict: roll back without waiting for an operator.
	reason := "auto rollback: " + strings.Join(verdict.ReasonStrings(), "; ")
	rec, err = m.driver.Update(ctx, id, func(r *deployment.Record) error {
		if !r.LastEvaluatedAt.IsZero() && m.now().Sub(r.LastEvaluatedAt) < m.cooldown {
			return errEvaluationRecorded
		}
		if !r.CanTransition(deployment.StateRollingBack) {
			return InvalidStateError{ID: id, State: string(r.State), Reason: "cannot roll back"}
		}
		r.State = deployment.StateRollingBack
		r.AppendEvaluation(deployment.VerdictFail, reason, canarySnap.Count)
		r.LastEvaluatedAt = now
		return nil
	})
	if errors.Is(err, errEvaluationRecorded) {
		return m.concurrentEvaluation(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	rec, err = m.transition(ctx, id, deployment.StateRolledBack, "")
	if err != nil {
		return nil, err
	}

	m.metrics.evaluation("fail")
	m.metrics.rolledBack()
	m.publish(ctx, rec, eventstream.EventTypeDeploymentRolledBack, verdict.ReasonStrings())
	m.logger.Warn("canary rolled back on failing verdict",
		zap.String("agent", rec.AgentName),
		zap.String("id", rec.ID),
		zap.Strings("reasons", verdict.ReasonStrings()),
	)

	return &Evaluation{Record: rec, Verdict: verdict, RolledBack: true}, nil
}

// Promote makes the canary config the agent's new baseline. A manual
// promotion may override an absent verdict, but never a failing one: if
// the latest recorded evaluation failed, the operator must roll back or
// re-evaluate first.
func (m *Manager) Promote(ctx context.Context, id string) (*deployment.Record, error) {
	rec, err := m.driver.Update(ctx, id, func(r *deployment.Record) error {
		if r.State != deployment.StateActive {
			return InvalidStateError{ID: id, State: string(r.State), Reason: "only active deployments can be promoted"}
		}
		if last := r.LastVerdict(); last != nil && last.Verdict != deployment.VerdictPass {
			return InvalidStateError{ID: id, State: string(r.State), Reason: "latest evaluation failed: " + last.Reason}
		}
		r.State = deployment.StatePromoting
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := m.driver.SetBaseline(ctx, rec.AgentName, rec.CanaryConfig); err != nil {
		return nil, fmt.Errorf("setting baseline: %w", err)
	}

	rec, err = m.transition(ctx, id, deployment.StatePromoted, "promoted to baseline")
	if err != nil {
		return nil, err
	}

	m.metrics.promoted()
	m.publish(ctx, rec, eventstream.EventTypeDeploymentPromoted, nil)
	m.logger.Info("canary promoted to baseline",
		zap.String("agent", rec.AgentName),
		zap.String("id", rec.ID),
	)

	return rec, nil
}

// Rollback reverts a deployment manually. Permitted from ACTIVE and
// PROMOTING.
func (m *Manager) Rollback(ctx context.Context, id, reason string) (*deployment.Record, error) {
	if reason == "" {
		reason = "manual rollback"
	}

	rec, err := m.driver.Update(ctx, id, func(r *deployment.Record) error {
		if !r.CanTransition(deployment.StateRollingBack) {
			return InvalidStateError{ID: id, State: string(r.State), Reason: "cannot roll back"}
		}
		r.State = deployment.StateRollingBack
		r.AppendDecision("", reason)
		return nil
	})
	if err != nil {
		return nil, err
	}

	rec, err = m.transition(ctx, id, deployment.StateRolledBack, "")
	if err != nil {
		return nil, err
	}

	m.metrics.rolledBack()
	m.publish(ctx, rec, eventstream.EventTypeDeploymentRolledBack, []string{reason})
	m.logger.Info("canary rolled back",
		zap.String("agent", rec.AgentName),
		zap.String("id", rec.ID),
		zap.String("reason", reason),
	)

	return rec, nil
}

// SetTrafficSplit adjusts the canary traffic share of an active deployment.
// Raising the split requires a passing evaluation within the cooldown window;
// lowering it is always allowed.
func (m *Manager) SetTrafficSplit(ctx context.Context, id string, percent int) (*deployment.Record, error) {
	if percent < 1 || percent > 100 {
		return nil, fmt.Errorf("traffic split must be between 1 and 100, got %d", percent)
	}

	now := m.now()
	rec, err := m.driver.Update(ctx, id, func(r *deployment.Record) error {
		if r.State != deployment.StateActive {
			return InvalidStateError{ID: id, State: string(r.State), Reason: "traffic split is only adjustable while active"}
		}
		if percent > r.TrafficSplitPercent {
			last := r.LastVerdict()
			fresh := !r.LastEvaluatedAt.IsZero() && now.Sub(r.LastEvaluatedAt) < m.cooldown
			if last == nil || last.Verdict != deployment.VerdictPass || !fresh {
				return InvalidStateError{ID: id, State: string(r.State), Reason: "raising the split requires a fresh passing evaluation"}
			}
		}
		r.TrafficSplitPercent = percent
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, rec, eventstream.EventTypeTrafficChanged, nil)

	return rec, nil
}

// CheckExpired sweeps active deployments whose duration has elapsed into
// EXPIRED. The sweep is idempotent: records already expired are untouched
// and re-running it reaches the same end state.
func (m *Manager) CheckExpired(ctx context.Context) ([]*deployment.Record, error) {
	active, err := m.driver.List(ctx, storage.Filter{State: deployment.StateActive})
	if err != nil {
		return nil, err
	}

	now := m.now()
	var swept []*deployment.Record
	for _, rec := range active {
		if !rec.Expired(now) {
			continue
		}

		updated, err := m.driver.Update(ctx, rec.ID, func(r *deployment.Record) error {
			if !r.CanTransition(deployment.StateExpired) {
				// Lost a race with another transition; skip.
				return InvalidStateError{ID: r.ID, State: string(r.State), Reason: "cannot expire"}
			}
			r.State = deployment.StateExpired
			r.AppendDecision("", "duration elapsed without manual action")
			return nil
		})
		if err != nil {
			var ise InvalidStateError
			if errors.As(err, &ise) {
				continue
			}
			return swept, err
		}

		m.metrics.expired()
		m.publish(ctx, updated, eventstream.EventTypeDeploymentExpired, nil)
		m.logger.Info("canary deployment expired",
			zap.String("agent", updated.AgentName),
			zap.String("id", updated.ID),
		)
		swept = append(swept, updated)
	}

	return swept, nil
}

// Get returns a deployment by id.
func (m *Manager) Get(ctx context.Context, id string) (*deployment.Record, error) {
	return m.driver.Get(ctx, id)
}

// List returns deployments matching the filter, newest first.
func (m *Manager) List(ctx context.Context, filter storage.Filter) ([]*deployment.Record, error) {
	return m.driver.List(ctx, filter)
}

// Route returns the agent's live canary deployment, or nil if all traffic
// should go to the baseline.
func (m *Manager) Route(ctx context.Context, agentName string) (*deployment.Record, error) {
	rec, err := m.driver.ActiveByAgent(ctx, agentName)
	if err != nil {
		var nfe storage.NotFoundError
		if errors.As(err, &nfe) {
			return nil, nil
		}
		return nil, err
	}

	return rec, nil
}

// Baseline returns the agent's current baseline config, or nil when no
// promotion has happened yet.
func (m *Manager) Baseline(ctx context.Context, agentName string) ([]byte, error) {
	config, err := m.driver.GetBaseline(ctx, agentName)
	if err != nil {
		var nfe storage.NotFoundError
		if errors.As(err, &nfe) {
			return nil, nil
		}
		return nil, err
	}

	return config, nil
}

// transition moves a record to next, appending an optional decision entry.
func (m *Manager) transition(ctx context.Context, id string, next deployment.State, decision string) (*deployment.Record, error) {
	return m.driver.Update(ctx, id, func(r *deployment.Record) error {
		if !r.CanTransition(next) {
			return InvalidStateError{ID: id, State: string(r.State), Reason: fmt.Sprintf("cannot transition to %s", next)}
		}
		r.State = next
		if decision != "" {
			r.AppendDecision("", decision)
		}
		return nil
	})
}

// publish emits a lifecycle event. Publishing is best effort: a stream
// outage must never block a deployment decision.
func (m *Manager) publish(ctx context.Context, rec *deployment.Record, eventType string, reasons []string) {
	event := &eventstream.DeploymentEvent{
		SchemaVersion:       eventstream.SchemaVersionV1,
		EventType:           eventType,
		EventID:             uuid.NewString(),
		EmittedAt:           m.now(),
		DeploymentID:        rec.ID,
		AgentName:           rec.AgentName,
		State:               string(rec.State),
		TrafficSplitPercent: rec.TrafficSplitPercent,
		Reasons:             reasons,
	}

	if err := m.publisher.PublishDeployment(ctx, event); err != nil {
		m.logger.Warn("failed to publish deployment event",
			zap.String("event_type", eventType),
			zap.String("id", rec.ID),
			zap.Error(err),
		)
	}
}
