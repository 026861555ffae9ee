package core

// TaskGroup accumulates member futures/tasks and exposes a family of
// waiter futures backed by handlers fed each newly-done member (spec.md §3,
// "Task group"; §4.5). Grounded on the done/pending bookkeeping described
// there; there is no direct teacher analogue (the teacher's eventloop
// package has no task-group construct), so the waiter dispatch loop below
// is written in the same call_soon-scheduled, single-threaded style as the
// rest of core.
type TaskGroup struct {
	l       *Loop
	pending map[futurer]struct{}
	done    map[futurer]struct{}
	waiters []*groupWaiter
}

type groupWaiter struct {
	consider func(member futurer) (resolved bool)
	// resolved marks a waiter whose consider already returned true (and so
	// was already dropped from g.waiters by memberDone); removeWaiter must
	// not be confused into double-removing it.
	resolved bool
}

// addWaiter appends a waiter built from consider and returns it so the
// caller can wire its owning future's cancellation back to removeWaiter
// (spec.md §8 testable property 7: "cancelling the waiter removes it from
// the group without affecting membership").
func (g *TaskGroup) addWaiter(consider func(member futurer) bool) *groupWaiter {
	w := &groupWaiter{}
	w.consider = func(member futurer) bool {
		if consider(member) {
			w.resolved = true
			return true
		}
		return false
	}
	g.waiters = append(g.waiters, w)
	return w
}

// removeWaiter drops w from g.waiters immediately, used when the waiter's
// future is cancelled before memberDone would otherwise have pruned it. A
// no-op if w already left g.waiters (resolved normally, or already removed).
func (g *TaskGroup) removeWaiter(w *groupWaiter) {
	for i, x := range g.waiters {
		if x == w {
			g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
			return
		}
	}
}

// NewTaskGroup returns an empty TaskGroup owned by l.
func NewTaskGroup(l *Loop) *TaskGroup {
	return &TaskGroup{
		l:       l,
		pending: make(map[futurer]struct{}),
		done:    make(map[futurer]struct{}),
	}
}

// addMember is the generic entry point; AddTask/AddFuture wrap it so
// callers don't have to know about the internal futurer interface.
func (g *TaskGroup) addMember(f futurer) {
	if f.done() {
		g.memberDone(f)
		return
	}
	g.pending[f] = struct{}{}
	f.addRawDoneCallback(func() { g.memberDone(f) })
}

// AddTask adds a Task[T] to the group.
func AddTask[T any](g *TaskGroup, t *Task[T]) { g.addMember(t) }

// AddFuture adds a bare Future[T] to the group.
func AddFuture[T any](g *TaskGroup, f *Future[T]) { g.addMember(f) }

func (g *TaskGroup) memberDone(f futurer) {
	delete(g.pending, f)
	g.done[f] = struct{}{}

	active := g.waiters[:0]
	for _, w := range g.waiters {
		if w.consider(f) {
			continue
		}
		active = append(active, w)
	}
	g.waiters = active
}

// Len returns the number of members, pending and done.
func (g *TaskGroup) Len() int { return len(g.pending) + len(g.done) }

// WaitNext completes when the next member (from the moment of the call)
// transitions to done, yielding that member.
func (g *TaskGroup) WaitNext() *Future[futurer] {
	fut := newFuture[futurer](g.l)
	w := g.addWaiter(func(member futurer) bool {
		_ = fut.SetResult(member)
		return true
	})
	fut.AddDoneCallback(func(*Future[futurer]) {
		if !w.resolved {
			g.removeWaiter(w)
		}
	})
	return fut
}

// WaitFirst completes as soon as any member is done (including one already
// done at call time), yielding it; the member remains in the done set.
func (g *TaskGroup) WaitFirst() *Future[futurer] {
	fut := newFuture[futurer](g.l)
	for member := range g.done {
		_ = fut.SetResult(member)
		return fut
	}
	w := g.addWaiter(func(member futurer) bool {
		_ = fut.SetResult(member)
		return true
	})
	fut.AddDoneCallback(func(*Future[futurer]) {
		if !w.resolved {
			g.removeWaiter(w)
		}
	})
	return fut
}

// WaitFirstAndPop is WaitFirst, additionally removing the returned member
// from the done set.
func (g *TaskGroup) WaitFirstAndPop() *Future[futurer] {
	fut := g.WaitFirst()
	fut.AddDoneCallback(func(f *Future[futurer]) {
		if member, err := f.Result(); err == nil {
			delete(g.done, member)
		}
	})
	return fut
}

// WaitException completes when a member finishes with an exception, or
// (with a nil member) once every member has completed without one.
func (g *TaskGroup) WaitException() *Future[futurer] {
	fut := newFuture[futurer](g.l)
	check := func(member futurer) bool {
		if member.exception() != nil {
			_ = fut.SetResult(member)
			return true
		}
		if len(g.pending) == 0 {
			var zero futurer
			_ = fut.SetResult(zero)
			return true
		}
		return false
	}
	for member := range g.done {
		if check(member) {
			return fut
		}
	}
	w := g.addWaiter(check)
	fut.AddDoneCallback(func(*Future[futurer]) {
		if !w.resolved {
			g.removeWaiter(w)
		}
	})
	return fut
}

// WaitExceptionAndPop is WaitException, additionally removing a returned
// exceptional member from the done set.
func (g *TaskGroup) WaitExceptionAndPop() *Future[futurer] {
	fut := g.WaitException()
	fut.AddDoneCallback(func(f *Future[futurer]) {
		if member, err := f.Result(); err == nil && member != nil {
			delete(g.done, member)
		}
	})
	return fut
}

// WaitFirstN completes once n members are done, yielding all done members
// at that point.
func (g *TaskGroup) WaitFirstN(n int) *Future[[]futurer] {
	fut := newFuture[[]futurer](g.l)
	if len(g.done) >= n {
		_ = fut.SetResult(g.doneSlice())
		return fut
	}
	w := g.addWaiter(func(futurer) bool {
		if len(g.done) >= n {
			_ = fut.SetResult(g.doneSlice())
			return true
		}
		return false
	})
	fut.AddDoneCallback(func(*Future[[]futurer]) {
		if !w.resolved {
			g.removeWaiter(w)
		}
	})
	return fut
}

// WaitAll completes once every member is done.
func (g *TaskGroup) WaitAll() *Future[[]futurer] {
	return g.WaitFirstN(g.Len())
}

func (g *TaskGroup) doneSlice() []futurer {
	out := make([]futurer, 0, len(g.done))
	for m := range g.done {
		out = append(out, m)
	}
	return out
}

// CancelOnException runs fn; if it returns a non-nil error, every pending
// member of the group is cancelled before the error is returned,
// mirroring spec.md §4.5's "cancel_on_exception context manager."
func (g *TaskGroup) CancelOnException(fn func() error) error {
	err := fn()
	if err != nil {
		g.CancelAll(err)
	}
	return err
}

// CancelAll cancels every pending member with cause.
func (g *TaskGroup) CancelAll(cause error) {
	for member := range g.pending {
		member.cancel(cause)
	}
}
