package sandbox

import (
	"errors"
	"fmt"
)

// Kind classifies a generation failure. The split matters to callers:
// capability and schema failures are user-fixable, execution failures may be
// transient (resubmission is the caller's call, never automatic).
type Kind string

const (
	KindCapabilityViolation Kind = "capability_violation"
	KindExecutionTimeout    Kind = "execution_timeout"
	KindExecutionFault      Kind = "execution_fault"
	KindNoResultProduced    Kind = "no_result_produced"
	KindSchemaViolation     Kind = "schema_violation"
)

// Sentinels for errors.Is checks.
var (
	ErrCapabilityViolation = errors.New("capability violation")
	ErrExecutionTimeout    = errors.New("execution timeout")
	ErrExecutionFault      = errors.New("execution fault")
	ErrNoResultProduced    = errors.New("no result produced")
	ErrSchemaViolation     = errors.New("schema violation")
)

// Error is a structured generation failure. Where points at the offending
// identifier, field, or script position when one is known.
type Error struct {
	Kind    Kind
	Message string
	Where   string
}

func (e *Error) Error() string {
	if e.Where != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Where)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindCapabilityViolation:
		return ErrCapabilityViolation
	case KindExecutionTimeout:
		return ErrExecutionTimeout
	case KindExecutionFault:
		return ErrExecutionFault
	case KindNoResultProduced:
		return ErrNoResultProduced
	case KindSchemaViolation:
		return ErrSchemaViolation
	}
	return nil
}
