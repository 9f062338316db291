package promotion

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

const (
	genericExecutionMessage = "Promotion failed. Please try again."
	timeoutMessage          = "The school server took too long to respond. Please try again."
)

var (
	ErrNoCurrentSession     = errors.New("no current academic session: promotions are disabled")
	ErrUnauthenticated      = errors.New("not authenticated")
	ErrInvalidTransition    = errors.New("invalid bulk promotion transition")
	ErrConfirmationRequired = errors.New("bulk promotion must be confirmed first")
	ErrEmptyCohort          = errors.New("no active students in the selected cohort")
	ErrInFlight             = errors.New("a promotion is already being executed")
)

// userMessager is implemented by backend errors carrying a message meant for the operator.
type userMessager interface {
	UserMessage() string
}

// ExecutionError is returned when a promote call fails outright.
// Message is the server-provided message when there is one.
type ExecutionError struct {
	Op      string
	Message string
	Err     error
}

func newExecutionError(op string, err error) *ExecutionError {
	msg := genericExecutionMessage
	var um userMessager
	switch {
	case errors.As(err, &um) && um.UserMessage() != "":
		msg = um.UserMessage()
	case errors.Is(err, context.DeadlineExceeded):
		msg = timeoutMessage
	}
	return &ExecutionError{Op: op, Message: msg, Err: err}
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

func transitionError(from Phase, action string) error {
	return errors.Wrapf(ErrInvalidTransition, "cannot %s while %s", action, from)
}
