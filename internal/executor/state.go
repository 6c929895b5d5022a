package executor

import (
	"time"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
)

// State is one phase of the copy-trade execution state machine.
type State int

const (
	StateQuoting State = iota
	StateBuilding
	StateSigning
	StateSubmitting
	StateConfirming
	StateSucceeded
	StateFailed
)

// MaxTries bounds the number of execution attempts per purchase.
const MaxTries = 3

func (s State) String() string {
	switch s {
	case StateQuoting:
		return "quoting"
	case StateBuilding:
		return "building"
	case StateSigning:
		return "signing"
	case StateSubmitting:
		return "submitting"
	case StateConfirming:
		return "confirming"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the machine has reached an end state.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Next is the pure transition function of the execution state machine. Given
// the state whose step just ran, the error that step produced (nil on
// success), and the number of failed tries so far INCLUDING this one when
// stepErr is non-nil, it returns the next state.
//
// A nil stepErr advances through Quoting, Building, Signing, Submitting,
// Confirming, Succeeded. A terminal error (no route, insufficient funds)
// moves straight to Failed with no retry. Any other error restarts from
// Quoting while tries < MaxTries, then fails.
func Next(s State, stepErr error, tries int) State {
	if stepErr != nil {
		if domain.IsTerminal(stepErr) {
			return StateFailed
		}
		if tries < MaxTries {
			return StateQuoting
		}
		return StateFailed
	}

	switch s {
	case StateQuoting:
		return StateBuilding
	case StateBuilding:
		return StateSigning
	case StateSigning:
		return StateSubmitting
	case StateSubmitting:
		return StateConfirming
	case StateConfirming:
		return StateSucceeded
	default:
		return s
	}
}

// Backoff returns the delay before the n-th retry (n >= 1):
// min(1000 * 2^(n-1), 10000) milliseconds.
func Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	ms := int64(1000) << (n - 1)
	if ms > 10000 {
		ms = 10000
	}
	return time.Duration(ms) * time.Millisecond
}
