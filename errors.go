package availsim

import (
	"errors"
	"fmt"
)

// BuildErrorCode classifies model-assembly failures.
type BuildErrorCode string

const (
	// ErrCodeDuplicateComponent reports a component name declared twice.
	ErrCodeDuplicateComponent BuildErrorCode = "DUPLICATE_COMPONENT"

	// ErrCodeDuplicateFlow reports a flow name declared twice on one
	// component.
	ErrCodeDuplicateFlow BuildErrorCode = "DUPLICATE_FLOW"

	// ErrCodeDuplicateConnection reports a connection wired twice.
	ErrCodeDuplicateConnection BuildErrorCode = "DUPLICATE_CONNECTION"

	// ErrCodeUnknownComponent reports a reference to an undeclared
	// component.
	ErrCodeUnknownComponent BuildErrorCode = "UNKNOWN_COMPONENT"

	// ErrCodeUnknownFlow reports a reference to an undeclared flow, or to
	// a flow of the wrong kind for the operation.
	ErrCodeUnknownFlow BuildErrorCode = "UNKNOWN_FLOW"

	// ErrCodeInvalidLogicMode reports an input logic other than and/or.
	ErrCodeInvalidLogicMode BuildErrorCode = "INVALID_LOGIC_MODE"

	// ErrCodeCyclicDependency reports a synchronous dependency cycle among
	// flow update rules.
	ErrCodeCyclicDependency BuildErrorCode = "CYCLIC_DEPENDENCY"

	// ErrCodeInsufficientParameters reports a failure mode whose parameter
	// list does not match its target count.
	ErrCodeInsufficientParameters BuildErrorCode = "INSUFFICIENT_PARAMETERS"
)

// BuildError reports a defect in model assembly. Build errors are fatal
// for the model: they surface before any run starts.
type BuildError struct {
	// Code classifies the defect.
	Code BuildErrorCode

	// Component names the component involved, when one is known.
	Component string

	// Flow names the flow involved, when one is known.
	Flow string

	// Detail describes the defect.
	Detail string
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	msg := fmt.Sprintf("build error %s", e.Code)
	if e.Component != "" {
		msg += fmt.Sprintf(" (component=%s", e.Component)
		if e.Flow != "" {
			msg += fmt.Sprintf(", flow=%s", e.Flow)
		}
		msg += ")"
	} else if e.Flow != "" {
		msg += fmt.Sprintf(" (flow=%s)", e.Flow)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// IsBuildError reports whether err is (or wraps) a BuildError with the
// given code.
func IsBuildError(err error, code BuildErrorCode) bool {
	var be *BuildError
	return errors.As(err, &be) && be.Code == code
}
