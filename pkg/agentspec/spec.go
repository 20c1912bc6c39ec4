// Package agentspec loads and validates the agent specification files that
// describe each deployable agent: its backing model, SLO thresholds, and
// static security posture.
//
// Specs are YAML files, one per agent, named <agent>.yaml in the spec
// directory. They are re-validated on every read so external edits surface
// immediately; nothing caches a stale "valid" verdict.
package agentspec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/arcanumlabs/canary/pkg/gate"
)

// AgentSpec describes a deployable agent.
type AgentSpec struct {
	// Name uniquely identifies the agent (e.g. "spirit-scribe").
	Name string `yaml:"name" json:"name"`

	// Provider and Model identify the backing LLM.
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`

	// Purpose is the operator-facing description of what the agent does.
	Purpose string `yaml:"purpose" json:"purpose"`

	// Version is a semantic version string (x.y.z).
	Version string `yaml:"version" json:"version"`

	// SystemPromptFile optionally points at the agent's prompt file.
	SystemPromptFile string `yaml:"system_prompt_file,omitempty" json:"system_prompt_file,omitempty"`

	// SLO holds the quality-gate thresholds for this agent.
	SLO SLO `yaml:"slo" json:"slo"`

	// Security is the set of named boolean checks the spec asserts.
	// Every flag present must be true; validation also scans the raw spec
	// content for hardcoded credentials regardless of what is asserted.
	Security map[string]bool `yaml:"security,omitempty" json:"security,omitempty"`

	// Deprecated marks an agent that should not receive new deployments.
	Deprecated bool `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`
}

// SLO holds the per-agent service-level objectives.
type SLO struct {
	LatencyP95Ms        float64 `yaml:"latency_p95_ms" json:"latency_p95_ms"`
	SuccessRate         float64 `yaml:"success_rate" json:"success_rate"`
	MaxCostCentsPerHour float64 `yaml:"max_cost_cents_per_hour" json:"max_cost_cents_per_hour"`

	// RegressionTolerance bounds how far a canary may fall below its
	// baseline's success rate. Zero means "use the default".
	RegressionTolerance float64 `yaml:"regression_tolerance,omitempty" json:"regression_tolerance,omitempty"`
}

// DefaultRegressionTolerance applies when a spec does not set its own.
const DefaultRegressionTolerance = 0.05

// Thresholds converts the spec's SLO into gate thresholds.
func (s *AgentSpec) Thresholds() gate.Thresholds {
	tolerance := s.SLO.RegressionTolerance
	if tolerance == 0 {
		tolerance = DefaultRegressionTolerance
	}

	return gate.Thresholds{
		MaxLatencyP95Ms:     s.SLO.LatencyP95Ms,
		MinSuccessRate:      s.SLO.SuccessRate,
		MaxCostCentsPerHour: s.SLO.MaxCostCentsPerHour,
		RegressionTolerance: tolerance,
	}
}

// Hash returns a short stable content hash of the spec, used for change
// detection between a pinned deployment and the spec file on disk.
func (s *AgentSpec) Hash() string {
	// JSON with sorted struct fields gives a stable encoding.
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12]
}

// NotFoundError is returned when an agent spec doesn't exist in the store.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	if e.Name == "" {
		return "agent spec not found"
	}
	return fmt.Sprintf("agent spec not found: %s", e.Name)
}
