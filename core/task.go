package core

import (
	"errors"
	"iter"
)

// Coroutine is a task body: a function that runs to completion or
// suspension points expressed via the Yielder it's handed. Grounded on the
// asyncio_go reference's Coroutine2[RetType], this is the Go realization of
// spec.md §9's design note on "coroutine driving without a language-level
// coroutine type" — there is no Go coroutine primitive, so iter.Pull
// supplies the suspend/resume trampoline instead.
type Coroutine[T any] func(y *Yielder) (T, error)

// Yielder is the suspension handle a running Coroutine uses to await a
// future. It is only valid for the duration of the Coroutine call that
// received it.
type Yielder struct {
	task      taskController
	yieldFunc func(futurer) bool
}

// taskController is the subset of *Task[T] a Yielder needs, narrowed so
// Yielder itself need not be generic.
type taskController interface {
	takePendingCancel() error
	setWaited(futurer)
	clearWaited()
}

// Await suspends the coroutine until f completes, per spec.md §4.4 step 3:
// case (d), "yields a future bound to the same loop... attaches itself as a
// done-callback... records it as waited_future, and suspends." Returns f's
// result, or the pending-cancel exception if one was set before the await
// (step 1-2: "the next value sent in is the pending-cancel exception").
func Await[T any](y *Yielder, f *Future[T]) (T, error) {
	var zero T
	if cause := y.task.takePendingCancel(); cause != nil {
		f.cancel(cause)
		return zero, cause
	}
	f.setBlocking(true)
	y.task.setWaited(f)
	ok := y.yieldFunc(f)
	y.task.clearWaited()
	f.setBlocking(false)
	if !ok {
		return zero, &CancelledError{}
	}
	if cause := y.task.takePendingCancel(); cause != nil {
		return zero, cause
	}
	return f.Result()
}

// Yield suspends the coroutine for one loop iteration without waiting on
// any future, per spec.md §4.4 step 3 case (e): "yields bare... the task
// re-schedules itself via call_soon."
func (y *Yielder) Yield() error {
	if cause := y.task.takePendingCancel(); cause != nil {
		return cause
	}
	if !y.yieldFunc(nil) {
		return &CancelledError{}
	}
	if cause := y.task.takePendingCancel(); cause != nil {
		return cause
	}
	return nil
}

// Task is a Future[T] whose completion is driven by stepping a Coroutine[T]
// to its next suspension (spec.md §3, "Task"; §4.4). Grounded on the
// asyncio_go reference's Task[RetType], adapted to this loop's explicit
// call_soon-based step scheduling instead of an ambient context.Context.
type Task[T any] struct {
	l         *Loop
	resultFut *Future[T]

	next func() (futurer, bool)
	stop func()

	pendingCancel error
	waited        futurer
}

func newTask[T any](l *Loop, coro Coroutine[T]) *Task[T] {
	t := &Task[T]{l: l, resultFut: newFuture[T](l)}

	next, stop := iter.Pull(func(yield func(futurer) bool) {
		y := &Yielder{task: t, yieldFunc: yield}
		result, err := coro(y)
		if err != nil {
			var ce *CancelledError
			if errors.As(err, &ce) {
				t.resultFut.Cancel(err)
			} else {
				_ = t.resultFut.SetException(err)
			}
			return
		}
		_ = t.resultFut.SetResult(result)
	})
	t.next = next
	t.stop = stop

	l.CallSoon(t.Step)
	return t
}

func (t *Task[T]) takePendingCancel() error {
	cause := t.pendingCancel
	t.pendingCancel = nil
	return cause
}

func (t *Task[T]) setWaited(f futurer)  { t.waited = f }
func (t *Task[T]) clearWaited()         { t.waited = nil }

// Step drives the coroutine to its next suspension or completion. Called
// once by newTask and thereafter from done-callbacks on the future the
// task is suspended on, or rescheduled via call_soon for a bare yield.
func (t *Task[T]) Step() {
	if t.resultFut.done() {
		return
	}
	f, ok := t.next()
	if !ok {
		t.stop()
		return
	}
	if f == nil {
		t.l.CallSoon(t.Step)
		return
	}
	f.addRawDoneCallback(t.Step)
}

// Cancel requests cancellation, per spec.md §4.4's "Cancellation": if the
// task has a waited_future, cancel that future first; otherwise set the
// pending-cancel flag and reschedule the step so the coroutine observes
// the cancellation at its next await.
func (t *Task[T]) Cancel(cause error) bool {
	if t.resultFut.done() {
		return false
	}
	if cause == nil {
		cause = &CancelledError{}
	}
	if t.waited != nil {
		return t.waited.cancel(cause)
	}
	t.pendingCancel = cause
	t.l.CallSoon(t.Step)
	return true
}

// Done reports whether the task's coroutine has returned, raised, or been
// cancelled.
func (t *Task[T]) Done() bool { return t.resultFut.done() }

// Result returns the task's return value, propagates its exception, or
// returns InvalidStateError if it is still running.
func (t *Task[T]) Result() (T, error) { return t.resultFut.Result() }

// Future exposes the task's underlying Future[T], e.g. to add it to a
// TaskGroup or to Await it from another Coroutine.
func (t *Task[T]) Future() *Future[T] { return t.resultFut }

func (t *Task[T]) done() bool                     { return t.resultFut.done() }
func (t *Task[T]) state() futureState             { return t.resultFut.state() }
func (t *Task[T]) exception() error                { return t.resultFut.exception() }
func (t *Task[T]) cancel(cause error) bool         { return t.Cancel(cause) }
func (t *Task[T]) addRawDoneCallback(cb func())    { t.resultFut.addRawDoneCallback(cb) }
func (t *Task[T]) setBlocking(b bool)              { t.resultFut.setBlocking(b) }
