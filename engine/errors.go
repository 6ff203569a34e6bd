package engine

import (
	"errors"
	"fmt"
)

// RuntimeInvariantError reports a defect detected while a run is in
// progress: an automaton left without a consistent pending event, a
// negative sampled delay, or a same-instant firing cascade that exceeds
// the instant quota.
//
// A RuntimeInvariantError aborts the current run only. Other runs of the
// same simulation are unaffected (they own isolated model copies).
type RuntimeInvariantError struct {
	// Automaton names the automaton whose transition misbehaved.
	Automaton string

	// Transition names the offending transition, when one is known.
	Transition string

	// Time is the simulated time at which the defect was detected.
	Time float64

	// Message describes the violated invariant.
	Message string
}

// Error implements the error interface.
func (e *RuntimeInvariantError) Error() string {
	if e.Transition != "" {
		return fmt.Sprintf("runtime invariant violated at t=%g (automaton=%s, transition=%s): %s",
			e.Time, e.Automaton, e.Transition, e.Message)
	}
	return fmt.Sprintf("runtime invariant violated at t=%g (automaton=%s): %s",
		e.Time, e.Automaton, e.Message)
}

// IsRuntimeInvariantError reports whether err is (or wraps) a
// RuntimeInvariantError.
func IsRuntimeInvariantError(err error) bool {
	var re *RuntimeInvariantError
	return errors.As(err, &re)
}
