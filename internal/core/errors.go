package core

import (
	"errors"

	"github.com/webterm/webterm/internal/core/execution"
	"github.com/webterm/webterm/internal/core/session"
	"github.com/webterm/webterm/internal/core/translate"
)

// Kind classifies a user-visible failure.
type Kind string

const (
	KindValidationRejected     Kind = "validation_rejected"
	KindTranslationUnavailable Kind = "translation_unavailable"
	KindSpawnFailed            Kind = "spawn_failed"
	KindRuntimeFailure         Kind = "runtime_failure"
	KindTimedOut               Kind = "timed_out"
	KindCancelled              Kind = "cancelled"
	KindBusy                   Kind = "busy"
	KindTooManySessions        Kind = "too_many_sessions"
	KindInternal               Kind = "internal"
)

// Error is a failure the transports report to the client.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf classifies err.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.Kind
	}

	switch {
	case errors.Is(err, execution.ErrBusy), errors.Is(err, execution.ErrServerBusy):
		return KindBusy
	case errors.Is(err, session.ErrTooManySessions):
		return KindTooManySessions
	case errors.Is(err, translate.ErrUnavailable):
		return KindTranslationUnavailable
	case errors.Is(err, execution.ErrSpawnFailed):
		return KindSpawnFailed
	case errors.Is(err, execution.ErrTimedOut):
		return KindTimedOut
	default:
		return KindInternal
	}
}

// AsError converts err to an *Error, classifying it when needed.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr
	}
	return newError(KindOf(err), err.Error(), err)
}

// KindOfResult classifies a finished process. Completed processes have no
// kind.
func KindOfResult(res execution.Result) Kind {
	switch res.State {
	case execution.StateCancelled:
		return KindCancelled
	case execution.StateTimedOut:
		return KindTimedOut
	case execution.StateFailed:
		if errors.Is(res.Err, execution.ErrSpawnFailed) {
			return KindSpawnFailed
		}
		return KindRuntimeFailure
	default:
		return ""
	}
}
