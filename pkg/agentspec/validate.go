package agentspec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arcanumlabs/canary/pkg/gate"
)

// secretPatterns are the substrings treated as likely hardcoded credentials
// when found outside comments in a spec file.
var secretPatterns = []string{"sk-", "api_key:", "password:", "secret:", "token:"}

// Validate checks an AgentSpec for structural correctness. Every violated
// field contributes its own SchemaViolation reason so an operator can fix
// the whole file in one pass.
func Validate(spec *AgentSpec) gate.Verdict {
	var reasons []gate.Reason

	schema := func(format string, args ...any) {
		reasons = append(reasons, gate.Reason{
			Kind:    gate.KindSchemaViolation,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if spec.Name == "" {
		schema("missing required field: name")
	}
	if spec.Provider == "" {
		schema("missing required field: provider")
	}
	if spec.Model == "" {
		schema("missing required field: model")
	}
	if spec.Purpose == "" {
		schema("missing required field: purpose")
	}

	if spec.Version == "" {
		schema("missing required field: version")
	} else if !validSemver(spec.Version) {
		schema("invalid version %q (expected x.y.z)", spec.Version)
	}

	if spec.SLO.LatencyP95Ms <= 0 {
		schema("slo.latency_p95_ms must be > 0, got %g", spec.SLO.LatencyP95Ms)
	}
	if spec.SLO.SuccessRate < 0 || spec.SLO.SuccessRate > 1 {
		schema("slo.success_rate must be in [0, 1], got %g", spec.SLO.SuccessRate)
	}
	if spec.SLO.MaxCostCentsPerHour < 0 {
		schema("slo.max_cost_cents_per_hour must be >= 0, got %g", spec.SLO.MaxCostCentsPerHour)
	}
	if spec.SLO.RegressionTolerance < 0 || spec.SLO.RegressionTolerance > 1 {
		schema("slo.regression_tolerance must be in [0, 1], got %g", spec.SLO.RegressionTolerance)
	}

	for flag, set := range spec.Security {
		if !set {
			reasons = append(reasons, gate.Reason{
				Kind:    gate.KindSecurityViolation,
				Message: fmt.Sprintf("security flag %q is unset", flag),
			})
		}
	}

	return gate.NewVerdict(0, reasons)
}

// SecurityFindings statically scans raw spec content for likely hardcoded
// credentials. Comment lines are skipped. Returns one finding per pattern
// occurrence line.
func SecurityFindings(raw []byte) []string {
	var findings []string

	for i, line := range strings.Split(string(raw), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		// Env-var placeholders are the sanctioned way to reference credentials.
		if strings.Contains(trimmed, "${") {
			continue
		}

		lower := strings.ToLower(trimmed)
		for _, pattern := range secretPatterns {
			if strings.Contains(lower, pattern) {
				findings = append(findings,
					fmt.Sprintf("potential hardcoded secret on line %d (pattern %q)", i+1, pattern))
			}
		}
	}

	return findings
}

// validSemver reports whether version is three dot-separated numbers.
func validSemver(version string) bool {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return false
	}

	for _, part := range parts {
		if _, err := strconv.Atoi(part); err != nil {
			return false
		}
	}

	return true
}
