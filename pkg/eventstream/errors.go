package eventstream

import "errors"

// ErrNilDeploymentEvent indicates a nil deployment event payload was provided to a publisher.
var ErrNilDeploymentEvent = errors.New("nil deployment event")
