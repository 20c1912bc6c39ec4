package nop

import (
	"context"

	"github.com/arcanumlabs/canary/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishDeployment validates input and otherwise does nothing.
func (p *Publisher) PublishDeployment(_ context.Context, event *eventstream.DeploymentEvent) error {
	if event == nil {
		return eventstream.ErrNilDeploymentEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
