package core

import "runtime"

type futureState uint8

const (
	futurePending futureState = iota
	futureResult
	futureException
	futureCancelled
)

// futurer is the type-erased surface of a Future[T], used by Task to await
// a future whose result type it does not know, and by TaskGroup to hold a
// heterogeneous set of members (spec.md §3, "Task... the currently-awaited
// inner future").
type futurer interface {
	done() bool
	state() futureState
	exception() error
	cancel(cause error) bool
	addRawDoneCallback(cb func())
	setBlocking(bool)
}

// Future is a promise with a monotone state machine: pending →
// (result|exception|cancelled). Transitions out of pending are one-shot
// (spec.md §3, §4.3). Grounded on asyncio_go's Future[ResType], adapted
// from its context-cancellation model to this loop's explicit
// call_soon-scheduled done-callback dispatch.
type Future[T any] struct {
	l    *Loop
	meta *futureMeta

	st     futureState
	result T
	err    error

	callbacks []func()
	blocking  bool
}

// newFuture returns a pending Future[T] owned by l. l may be nil for a
// future that is never awaited by a task (rare; most futures belong to a
// loop).
func newFuture[T any](l *Loop) *Future[T] {
	f := &Future[T]{l: l, meta: &futureMeta{}}
	if l != nil {
		l.registry.track(f.meta)
	}
	meta := f.meta
	runtime.AddCleanup(f, func(m *futureMeta) {
		if m.err != nil && !m.silenced && !m.retrieved {
			reportDanglingException(m.name, m.err)
		}
	}, meta)
	return f
}

// reportDanglingException is the sink for an unretrieved exception on a
// collected future, whose owning loop (and therefore logger) may already be
// gone by the time it is collected. It writes through a package-level
// stderr logger; NewLoop does not replace it with the loop's own logger.
var reportDanglingException = func(name string, err error) {
	defaultLogger().Err().Str(`component`, `future`).Str(`name`, name).Err(err).Log(`exception was never retrieved`)
}

// WithName attaches a diagnostic name used in dangling-exception reports.
func (f *Future[T]) WithName(name string) *Future[T] {
	f.meta.name = name
	return f
}

// Silence suppresses the dangling-exception report for this future.
func (f *Future[T]) Silence() {
	f.meta.silenced = true
}

func (f *Future[T]) done() bool { return f.st != futurePending }

func (f *Future[T]) state() futureState { return f.st }

func (f *Future[T]) exception() error { return f.err }

func (f *Future[T]) setBlocking(b bool) { f.blocking = b }

// Blocking reports whether a task is currently suspended on this future
// (spec.md §3, Future's "blocking flag").
func (f *Future[T]) Blocking() bool { return f.blocking }

// Done reports whether the future has left the pending state.
func (f *Future[T]) Done() bool { return f.done() }

// SetResult transitions pending→result. Returns an *InvalidStateError if
// the future is not pending.
func (f *Future[T]) SetResult(v T) error {
	if f.st != futurePending {
		return &InvalidStateError{Message: "core: SetResult on a future that is not pending"}
	}
	f.result = v
	f.st = futureResult
	f.fire()
	return nil
}

// SetResultIfPending is SetResult's no-op-if-already-done counterpart
// (spec.md §4.3, "setters have a pair set_X / set_X_if_pending").
func (f *Future[T]) SetResultIfPending(v T) {
	if f.st == futurePending {
		_ = f.SetResult(v)
	}
}

// SetException transitions pending→exception. err must not be nil, and
// must not be a sentinel that models loop-internal iteration control
// (spec.md §3, "StopIteration may not be installed as a future's
// exception").
func (f *Future[T]) SetException(err error) error {
	if err == nil {
		return &InvalidStateError{Message: "core: SetException requires a non-nil error"}
	}
	if f.st != futurePending {
		return &InvalidStateError{Message: "core: SetException on a future that is not pending"}
	}
	f.err = err
	f.meta.err = err
	f.st = futureException
	f.fire()
	return nil
}

// SetExceptionIfPending is SetException's no-op-if-already-done
// counterpart.
func (f *Future[T]) SetExceptionIfPending(err error) {
	if f.st == futurePending {
		_ = f.SetException(err)
	}
}

// Cancel transitions pending→cancelled, installing a *CancelledError as
// the future's exception: cause itself if it already is one, otherwise a
// *CancelledError carrying cause as its Cause (nil for the default).
// Returns false if the future was already done.
func (f *Future[T]) Cancel(cause error) bool {
	if f.st != futurePending {
		return false
	}
	if _, ok := cause.(*CancelledError); !ok {
		cause = &CancelledError{Cause: cause}
	}
	f.err = cause
	f.meta.err = cause
	f.st = futureCancelled
	f.fire()
	return true
}

func (f *Future[T]) cancel(cause error) bool { return f.Cancel(cause) }

func (f *Future[T]) fire() {
	cbs := f.callbacks
	f.callbacks = nil
	for _, cb := range cbs {
		f.schedule(cb)
	}
}

func (f *Future[T]) schedule(cb func()) {
	if f.l != nil {
		f.l.CallSoon(cb)
	} else {
		cb()
	}
}

// AddDoneCallback appends cb to the future's done-callback list, or
// schedules it immediately (via call_soon) if the future is already done.
// Callbacks always run in FIFO order (spec.md §4.3, "Callback dispatch").
func (f *Future[T]) AddDoneCallback(cb func(*Future[T])) {
	wrapped := func() { cb(f) }
	if f.done() {
		f.schedule(wrapped)
		return
	}
	f.callbacks = append(f.callbacks, wrapped)
}

func (f *Future[T]) addRawDoneCallback(cb func()) {
	if f.done() {
		f.schedule(cb)
		return
	}
	f.callbacks = append(f.callbacks, cb)
}

// Result returns the result, re-raises the exception, or returns
// InvalidStateError if the future is still pending (spec.md §4.3,
// "Observation"). Observing an exception marks it retrieved, suppressing
// the dangling-exception report.
func (f *Future[T]) Result() (T, error) {
	switch f.st {
	case futureResult:
		var zero error
		return f.result, zero
	case futureException, futureCancelled:
		f.meta.retrieved = true
		var zero T
		return zero, f.err
	default:
		var zero T
		return zero, &InvalidStateError{Message: "core: Result called on a pending future"}
	}
}
