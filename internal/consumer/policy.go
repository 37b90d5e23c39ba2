package consumer

import "fmt"

// Policy decides what happens to an event whose processing failed.
type Policy string

const (
	// PolicySkip logs the failure, acks and moves on.
	PolicySkip Policy = "skip"
	// PolicyRetry hands transient failures to the retry queue, whose exhausted
	// tasks end up archived (dead-lettered). Permanent failures are skipped.
	PolicyRetry Policy = "retry"
	// PolicyStop halts the loop and leaves the message pending.
	PolicyStop Policy = "stop"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicySkip, PolicyRetry, PolicyStop:
		return p, nil
	}
	return "", fmt.Errorf("unknown failure policy %q", s)
}
