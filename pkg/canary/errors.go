package canary

import "fmt"

// InvalidStateError indicates an operation was requested against a
// deployment whose state does not permit it.
type InvalidStateError struct {
	ID     string
	State  string
	Reason string
}

func (e InvalidStateError) Error() string {
	msg := fmt.Sprintf("deployment %s in state %s", e.ID, e.State)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	return msg
}

// InsufficientSamplesError indicates the canary has not yet served enough
// requests for a statistically meaningful evaluation.
type InsufficientSamplesError struct {
	ID            string
	SampleSize    int64
	MinSampleSize int64
}

func (e InsufficientSamplesError) Error() string {
	return fmt.Sprintf("deployment %s has %d samples, need at least %d", e.ID, e.SampleSize, e.MinSampleSize)
}
