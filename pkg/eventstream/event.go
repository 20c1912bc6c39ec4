package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeDeploymentCreated is emitted when a canary deployment is created.
	EventTypeDeploymentCreated = "canary.deployment.created"

	// EventTypeDeploymentEvaluated is emitted after a quality gate evaluation.
	EventTypeDeploymentEvaluated = "canary.deployment.evaluated"

	// EventTypeDeploymentPromoted is emitted when a canary becomes the new baseline.
	EventTypeDeploymentPromoted = "canary.deployment.promoted"

	// EventTypeDeploymentRolledBack is emitted when a canary is rolled back.
	EventTypeDeploymentRolledBack = "canary.deployment.rolled_back"

	// EventTypeDeploymentExpired is emitted when a deployment passes its
	// expiry without manual action.
	EventTypeDeploymentExpired = "canary.deployment.expired"

	// EventTypeTrafficChanged is emitted when the traffic split is adjusted.
	EventTypeTrafficChanged = "canary.deployment.traffic_changed"
)

// DeploymentEvent is a transport-neutral event payload for a deployment
// lifecycle transition.
type DeploymentEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	DeploymentID        string   `json:"deployment_id"`
	AgentName           string   `json:"agent_name"`
	State               string   `json:"state"`
	TrafficSplitPercent int      `json:"traffic_split_percent"`
	Reasons             []string `json:"reasons,omitempty"`
}
