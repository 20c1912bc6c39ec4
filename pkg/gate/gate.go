package gate

import (
	"fmt"

	"github.com/arcanumlabs/canary/pkg/metrics"
)

// Thresholds are the SLO bounds a configuration must satisfy. They are
// carried on the agent spec and pinned by a deployment at creation time.
type Thresholds struct {
	// MaxLatencyP95Ms is the P95 latency ceiling in milliseconds.
	MaxLatencyP95Ms float64

	// MinSuccessRate is the success rate floor, in [0, 1].
	MinSuccessRate float64

	// MaxCostCentsPerHour is the hourly spend ceiling in cents.
	MaxCostCentsPerHour float64

	// RegressionTolerance is how far a canary's success rate may fall
	// below its baseline's before the relative check fails. Configurable
	// per spec; absolute SLOs alone miss regressions in agents with lax
	// targets.
	RegressionTolerance float64
}

// Evaluate runs the absolute SLO checks against a snapshot, plus any
// precomputed static security findings. Every check contributes its own
// failure reason; nothing short-circuits.
func Evaluate(th Thresholds, snap metrics.Snapshot, securityFindings []string) Verdict {
	var reasons []Reason

	if snap.SuccessRate < th.MinSuccessRate {
		reasons = append(reasons, Reason{
			Kind: KindSuccessRateViolation,
			Message: fmt.Sprintf("success rate %.3f below threshold %.3f",
				snap.SuccessRate, th.MinSuccessRate),
		})
	}

	if snap.P95LatencyMs > th.MaxLatencyP95Ms {
		reasons = append(reasons, Reason{
			Kind: KindLatencySLOViolation,
			Message: fmt.Sprintf("p95 latency %.0fms exceeds threshold %.0fms",
				snap.P95LatencyMs, th.MaxLatencyP95Ms),
		})
	}

	hourlyCost := snap.CostCentsTotal / snap.WindowHours()
	if hourlyCost > th.MaxCostCentsPerHour {
		reasons = append(reasons, Reason{
			Kind: KindCostThresholdViolation,
			Message: fmt.Sprintf("cost rate %.2f cents/hour exceeds threshold %.2f",
				hourlyCost, th.MaxCostCentsPerHour),
		})
	}

	for _, finding := range securityFindings {
		reasons = append(reasons, Reason{
			Kind:    KindSecurityViolation,
			Message: finding,
		})
	}

	return NewVerdict(snap.Count, reasons)
}

// EvaluateCanary runs the absolute checks on the canary snapshot and then
// the relative regression check against the baseline. A baseline with zero
// samples skips the relative check: there is nothing to regress from.
func EvaluateCanary(th Thresholds, baseline, canary metrics.Snapshot, securityFindings []string) Verdict {
	verdict := Evaluate(th, canary, securityFindings)
	reasons := verdict.Reasons

	if baseline.Count > 0 && canary.SuccessRate < baseline.SuccessRate-th.RegressionTolerance {
		reasons = append(reasons, Reason{
			Kind: KindRegressionViolation,
			Message: fmt.Sprintf("canary success rate %.3f more than %.3f below baseline %.3f",
				canary.SuccessRate, th.RegressionTolerance, baseline.SuccessRate),
		})
	}

	return NewVerdict(canary.Count, reasons)
}
