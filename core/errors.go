// Package core implements the event loop, futures, tasks, task groups,
// timeout scopes, and the thread-pool executor that everything else in this
// module is built on.
package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the loop lifecycle.
var (
	// ErrLoopAlreadyRunning is returned when Run is called on a loop that is
	// already running.
	ErrLoopAlreadyRunning = errors.New("core: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a loop
	// that has finished shutting down.
	ErrLoopTerminated = errors.New("core: loop has been terminated")

	// ErrReentrantRun names a Run call made from within the loop's own
	// goroutine. Run does not return it: a Run call on a loop that is
	// already running, from any goroutine, returns ErrLoopAlreadyRunning.
	ErrReentrantRun = errors.New("core: cannot call Run from within the loop")
)

// InvalidStateError is raised when an operation requires a future or task to
// be pending, but it has already completed (spec.md §7, "Invalid state").
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string {
	if e.Message == "" {
		return "core: invalid state"
	}
	return e.Message
}

// CancelledError is the error installed on a future or task that was
// cancelled. Awaiters observe it by re-raising through errors.Is.
type CancelledError struct {
	// Cause is the user-supplied cancellation reason, or nil for the default.
	Cause error
}

func (e *CancelledError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("core: cancelled: %v", e.Cause)
	}
	return "core: cancelled"
}

func (e *CancelledError) Unwrap() error { return e.Cause }

// Is reports true for any *CancelledError, regardless of cause, so that
// errors.Is(err, ErrCancelled) matches any cancellation.
func (e *CancelledError) Is(target error) bool {
	var c *CancelledError
	return errors.As(target, &c)
}

// ErrCancelled is a zero-value CancelledError usable as an errors.Is target.
var ErrCancelled = &CancelledError{}

// TimeoutError is raised at a TimeoutScope boundary in place of the raw
// cancellation that triggered it (spec.md §7, "Timeout").
type TimeoutError struct {
	Cause error
}

func (e *TimeoutError) Error() string {
	return "core: operation timed out"
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// ErrProtocolViolation is the task's exception when its coroutine yields a
// value the driver does not understand (spec.md §7, "Protocol violation").
var ErrProtocolViolation = errors.New("core: task yielded an unexpected value")

// PanicError wraps a value recovered from a panicking handle, coroutine step,
// or executor job.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("core: panic recovered: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ErrGoexit is installed on an executor future whose job called
// runtime.Goexit() instead of returning.
var ErrGoexit = errors.New("core: executor goroutine exited via runtime.Goexit")

// WrapError wraps cause with a message, preserving it for errors.Is/As.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
