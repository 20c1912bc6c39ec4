// Package gate implements the quality gates applied to an agent
// configuration's observed metrics before promotion.
//
// Evaluation is a pure decision function: given thresholds and a metrics
// snapshot it produces a Verdict, with one Reason per violated check. The
// evaluator never short-circuits, so a single call shows the operator the
// full picture.
package gate

import "fmt"

// Kind classifies a gate failure reason.
type Kind string

const (
	// KindSchemaViolation marks a malformed spec or canary config.
	KindSchemaViolation Kind = "SchemaViolation"

	// KindSuccessRateViolation marks a success rate below the SLO minimum.
	KindSuccessRateViolation Kind = "SuccessRateViolation"

	// KindLatencySLOViolation marks P95 latency above the SLO maximum.
	KindLatencySLOViolation Kind = "LatencySLOViolation"

	// KindCostThresholdViolation marks hourly spend above the cost ceiling.
	KindCostThresholdViolation Kind = "CostThresholdViolation"

	// KindSecurityViolation marks a failed static security check.
	KindSecurityViolation Kind = "SecurityViolation"

	// KindRegressionViolation marks a canary regressing relative to its
	// baseline beyond the spec's tolerance, even when absolute SLOs pass.
	KindRegressionViolation Kind = "RegressionViolation"
)

// Reason is a single violated check.
type Reason struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (r Reason) String() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

// Verdict is the outcome of a gate evaluation. Passed is true iff Reasons
// is empty. SampleSize records how many observations the verdict was
// computed over.
type Verdict struct {
	Passed     bool     `json:"passed"`
	Reasons    []Reason `json:"reasons,omitempty"`
	SampleSize int64    `json:"sample_size"`
}

// NewVerdict builds a Verdict from collected reasons.
func NewVerdict(sampleSize int64, reasons []Reason) Verdict {
	return Verdict{
		Passed:     len(reasons) == 0,
		Reasons:    reasons,
		SampleSize: sampleSize,
	}
}

// ReasonStrings flattens the verdict's reasons for display and decision logs.
func (v Verdict) ReasonStrings() []string {
	out := make([]string, 0, len(v.Reasons))
	for _, r := range v.Reasons {
		out = append(out, r.String())
	}
	return out
}
