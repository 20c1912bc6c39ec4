package config

const (
	defaultSpecsDir = "agents"

	defaultSplitPercent     = 10
	defaultDuration         = "4h"
	defaultMinSampleSize    = 10
	defaultEvaluateCooldown = "10s"

	defaultMetricsWindow = "1h"

	defaultAPIListen       = ":8085"
	defaultClientAPITarget = "http://localhost:8085"

	defaultEventsTopic = "canary-deployments"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Specs: SpecsConfig{
			Dir: defaultSpecsDir,
		},
		Deploy: DeployConfig{
			DefaultSplitPercent: defaultSplitPercent,
			DefaultDuration:     defaultDuration,
			MinSampleSize:       defaultMinSampleSize,
			EvaluateCooldown:    defaultEvaluateCooldown,
		},
		Metrics: MetricsConfig{
			Window: defaultMetricsWindow,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Events: EventsConfig{
			Topic: defaultEventsTopic,
		},
	}
}
