package eventstream

import "context"

// Publisher publishes deployment lifecycle events to an event stream backend.
type Publisher interface {
	PublishDeployment(ctx context.Context, event *DeploymentEvent) error
	Close() error
}
