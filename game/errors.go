package game

import (
	"errors"
	"fmt"
)

// ErrDrawExhausted means the draw sampler ran out of attempts. The
// round stays active; only the single draw attempt fails.
var ErrDrawExhausted = errors.New("draw exhausted: no undrawn number found")

// ValidationError covers malformed or out-of-range input. The
// triggering operation aborts with no state change.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidStateError means the operation is not legal in the current
// lifecycle state.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s not allowed while %s", e.Op, e.State)
}

// NotFoundError is an unknown player id.
type NotFoundError struct {
	PlayerID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("player %s not found", e.PlayerID)
}
