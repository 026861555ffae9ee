package core

import "time"

type timeoutState uint8

const (
	timeoutNone timeoutState = iota
	timeoutTimedOut
	timeoutCancelled
	timeoutExited
)

// cancellable is the subset of Task[T] a TimeoutScope needs to cancel its
// target; narrowed so TimeoutScope need not be generic over the task's
// result type.
type cancellable interface {
	Cancel(cause error) bool
}

// TimeoutScope binds a loop, a target task, a scheduled timer, and a state
// (spec.md §3, "Timeout scope"; §4.5). The target task is fixed at
// construction; expiry cancels it; on exit, if the expiry is what caused the
// cancellation, it is rewritten to a TimeoutError.
type TimeoutScope struct {
	l      *Loop
	target cancellable
	timer  *Handle
	state  timeoutState
}

// NewTimeoutScope schedules a timer for now+d against target. Per spec.md
// §4.5, "Entering a scope whose timer has already fired raises
// immediately" — callers should check Expired() right after construction if
// d could already have elapsed (e.g. d <= 0).
func NewTimeoutScope[T any](l *Loop, target *Task[T], d time.Duration) *TimeoutScope {
	s := &TimeoutScope{l: l, target: target}
	s.timer = l.CallLater(d, func() {
		if s.state != timeoutNone {
			return
		}
		s.state = timeoutTimedOut
		target.Cancel(&TimeoutError{})
	})
	return s
}

// Expired reports whether the scope's timer has already fired.
func (s *TimeoutScope) Expired() bool { return s.state == timeoutTimedOut }

// Exit finalizes the scope. If the timer fired and taskErr is the
// cancellation it caused, Exit returns a *TimeoutError in its place;
// otherwise taskErr is returned unchanged. Idempotent.
func (s *TimeoutScope) Exit(taskErr error) error {
	if s.state == timeoutNone {
		s.state = timeoutExited
		s.timer.Cancel()
		return taskErr
	}
	if s.state == timeoutTimedOut {
		s.state = timeoutExited
		if _, ok := taskErr.(*CancelledError); ok || taskErr == nil {
			return &TimeoutError{Cause: taskErr}
		}
	}
	return taskErr
}
