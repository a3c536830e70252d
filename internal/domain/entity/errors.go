package entity

import (
	"errors"
	"fmt"
)

// Recoverable errors. The executor only ever renders these into observations.
var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
	ErrToolTimeout      = errors.New("tool timed out")
	ErrToolPanic        = errors.New("tool panicked")
)

// Terminal errors.
var (
	ErrProtocol      = errors.New("model protocol violation")
	ErrMaxIterations = errors.New("max iterations exceeded")
	ErrRunTimeout    = errors.New("run time budget exceeded")
	ErrModel         = errors.New("model request failed")
	ErrCancelled     = errors.New("run cancelled")
	ErrEmptyQuestion = errors.New("question is empty")
)

type ErrorKind string

const (
	ErrorKindProtocol          ErrorKind = "protocol"
	ErrorKindResourceExhausted ErrorKind = "resource_exhausted"
	ErrorKindModel             ErrorKind = "model"
	ErrorKindCancelled         ErrorKind = "cancelled"
	ErrorKindInvalidInput      ErrorKind = "invalid_input"
)

// RunError is the terminal error of a failed run. Run holds the partial step
// trail recorded before the failure.
type RunError struct {
	Kind ErrorKind
	Err  error
	Run  *AgentRun
}

func (e *RunError) Error() string {
	return fmt.Sprintf("agent run failed (%s): %v", e.Kind, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func IsResourceExhausted(err error) bool {
	return errors.Is(err, ErrMaxIterations) || errors.Is(err, ErrRunTimeout)
}

func IsProtocolError(err error) bool {
	return errors.Is(err, ErrProtocol)
}

// KindOf classifies a terminal error.
func KindOf(err error) ErrorKind {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Kind
	}
	switch {
	case IsResourceExhausted(err):
		return ErrorKindResourceExhausted
	case IsProtocolError(err):
		return ErrorKindProtocol
	case errors.Is(err, ErrCancelled):
		return ErrorKindCancelled
	case errors.Is(err, ErrEmptyQuestion):
		return ErrorKindInvalidInput
	default:
		return ErrorKindModel
	}
}
