package action

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownType = errors.New("unknown action type")
	ErrInvalidSpec = errors.New("invalid action spec")
	ErrValidation  = errors.New("action validation failed")
	ErrExecution   = errors.New("action execution failed")
)

// Error is the action error raised while building or applying an action.
type Error struct {
	Type string // action type tag
	Op   string // "build", "validate" or "apply"
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Type, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Kind labels the error for observations.
func (e *Error) Kind() string {
	switch {
	case errors.Is(e.Err, ErrUnknownType):
		return "UnknownActionType"
	case errors.Is(e.Err, ErrInvalidSpec):
		return "InvalidSpec"
	case errors.Is(e.Err, ErrValidation):
		return "ValidationError"
	default:
		return "ExecutionError"
	}
}

// Invalid reports a field-level validation failure from an action's Validate.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Failed reports a failure inside Apply.
func Failed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrExecution, fmt.Sprintf(format, args...))
}
