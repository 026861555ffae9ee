package core

import (
	"container/heap"
	"runtime"
	"sync"
	"time"
)

// readyEpsilon bounds how far into the future a timer may fall and still be
// folded into this iteration's ready queue (spec.md §4.1, step 1, "now +
// ε"), absorbing clock-read jitter between the deadline computation and the
// timer sweep.
const readyEpsilon = 500 * time.Microsecond

// Loop is a single-threaded cooperative event loop: one ready queue, one
// timer heap, a selector for I/O readiness, a self-pipe for cross-thread
// wakeup, and a thread-pool executor for blocking offload (spec.md §3,
// "Event loop"). A Loop is pinned to whichever goroutine calls Run; every
// field but the ready queue's cross-thread append path is touched only from
// that goroutine.
type Loop struct {
	cfg    *loopConfig
	logger Logger
	clock  Clock

	state *atomicState

	mu        sync.Mutex // guards readyQueue and stopRequested only
	readyQueue []*Handle
	stopRequested bool

	timers timerHeap

	poller   poller
	wake     *wakePipe
	readers  map[int]*Handle
	writers  map[int]*Handle
	fdErrors map[int]int // consecutive accept-backoff failures per listening fd
	backoff  map[int]time.Time

	executor *Executor

	registry *futureRegistry

	runningGoroutine bool
}

// NewLoop constructs a Loop. The selector and self-pipe are opened
// immediately; Run must still be called (from the goroutine that will own
// the loop) to begin dispatching.
func NewLoop(opts ...Option) (*Loop, error) {
	cfg := resolveOptions(opts)

	p, err := newPoller()
	if err != nil {
		return nil, WrapError("core: open selector", err)
	}
	wp, err := newWakePipe()
	if err != nil {
		_ = p.Close()
		return nil, WrapError("core: open self-pipe", err)
	}
	if sp, ok := p.(interface{ setWakeFd(int) }); ok {
		sp.setWakeFd(wp.readFd)
	}

	l := &Loop{
		cfg:      cfg,
		logger:   cfg.logger,
		clock:    SystemClock,
		state:    newAtomicState(),
		poller:   p,
		wake:     wp,
		readers:  make(map[int]*Handle),
		writers:  make(map[int]*Handle),
		fdErrors: make(map[int]int),
		backoff:  make(map[int]time.Time),
		registry: newFutureRegistry(),
	}
	l.executor = newExecutor(l, cfg.executorSize, cfg.executorKeep)

	if err := l.poller.Add(wp.readFd, IOReadable, func(IOEvent) {
		l.wake.drain()
	}); err != nil {
		_ = p.Close()
		wp.close()
		return nil, WrapError("core: register self-pipe", err)
	}

	return l, nil
}

// Clock returns the loop's time source, for callers that need to compute
// deadlines consistently with the loop's own timer scheduling.
func (l *Loop) Clock() Clock { return l.clock }

// CallSoon appends a handle to the ready queue. Same-thread only: calling
// this from outside the loop's own goroutine is a race on the ready queue
// ordering (though not memory-unsafe, since the slice append is always
// under mu); CallSoonThreadSafe is the cross-thread-safe surface.
func (l *Loop) CallSoon(fn func()) *Handle {
	h := &Handle{fn: fn}
	l.mu.Lock()
	l.readyQueue = append(l.readyQueue, h)
	l.mu.Unlock()
	return h
}

// CallSoonThreadSafe appends a handle and wakes the loop if it is blocked
// in the selector. Safe from any goroutine.
func (l *Loop) CallSoonThreadSafe(fn func()) *Handle {
	h := &Handle{fn: fn}
	l.mu.Lock()
	l.readyQueue = append(l.readyQueue, h)
	l.mu.Unlock()
	l.wake.notify()
	return h
}

// CallAt pushes a TimerHandle for the given absolute deadline.
func (l *Loop) CallAt(when time.Time, fn func()) *Handle {
	h := &Handle{fn: fn}
	heap.Push(&l.timers, &timerEntry{handle: h, when: when})
	return h
}

// CallLater pushes a TimerHandle for now+delay.
func (l *Loop) CallLater(delay time.Duration, fn func()) *Handle {
	return l.CallAt(l.clock.Now().Add(delay), fn)
}

// CallLaterWeak is as CallLater, but fn's receiver is held weakly: once
// owner is otherwise unreachable the timer cancels itself instead of
// firing (spec.md §3, "TimerWeakHandle").
func CallLaterWeak[O any](l *Loop, delay time.Duration, owner *O, fn func(*O)) *Handle {
	cb, live := newWeakCallback(owner, fn)
	h := &Handle{fn: cb, liveCheck: live}
	heap.Push(&l.timers, &timerEntry{handle: h, when: l.clock.Now().Add(delay)})
	return h
}

// AddReader registers a readiness callback for fd becoming readable.
// Replacing an existing reader cancels the previous handle (spec.md §4.1).
func (l *Loop) AddReader(fd int, fn func()) error {
	return l.addWatch(fd, IOReadable, fn, l.readers)
}

// AddWriter registers a readiness callback for fd becoming writable.
func (l *Loop) AddWriter(fd int, fn func()) error {
	return l.addWatch(fd, IOWritable, fn, l.writers)
}

func (l *Loop) addWatch(fd int, _ IOEvent, fn func(), table map[int]*Handle) error {
	wasRegistered := l.isRegistered(fd)
	if old, ok := table[fd]; ok {
		old.Cancel()
	}
	table[fd] = &Handle{fn: fn}

	mask := l.watchMask(fd)
	if wasRegistered {
		return l.poller.Modify(fd, mask)
	}
	return l.poller.Add(fd, mask, func(ev IOEvent) { l.dispatchIO(fd, ev) })
}

func (l *Loop) isRegistered(fd int) bool {
	_, r := l.readers[fd]
	_, w := l.writers[fd]
	return r || w
}

func (l *Loop) watchMask(fd int) IOEvent {
	var m IOEvent
	if _, ok := l.readers[fd]; ok {
		m |= IOReadable
	}
	if _, ok := l.writers[fd]; ok {
		m |= IOWritable
	}
	return m
}

// RemoveReader unregisters fd's reader, returning whether one was removed.
func (l *Loop) RemoveReader(fd int) bool {
	return l.removeWatch(fd, l.readers)
}

// RemoveWriter unregisters fd's writer, returning whether one was removed.
func (l *Loop) RemoveWriter(fd int) bool {
	return l.removeWatch(fd, l.writers)
}

func (l *Loop) removeWatch(fd int, table map[int]*Handle) bool {
	h, ok := table[fd]
	if !ok {
		return false
	}
	h.Cancel()
	delete(table, fd)
	if l.isRegistered(fd) {
		_ = l.poller.Modify(fd, l.watchMask(fd))
	} else {
		_ = l.poller.Remove(fd)
		delete(l.fdErrors, fd)
		delete(l.backoff, fd)
	}
	return true
}

func (l *Loop) dispatchIO(fd int, ev IOEvent) {
	if ev&(IOReadable|IOError|IOHangup) != 0 {
		if h, ok := l.readers[fd]; ok && !h.Cancelled() {
			l.CallSoon(h.fn)
		}
	}
	if ev&IOWritable != 0 {
		if h, ok := l.writers[fd]; ok && !h.Cancelled() {
			l.CallSoon(h.fn)
		}
	}
}

// CreateFuture returns a new, pending Future[T] owned by this loop.
func CreateFuture[T any](l *Loop) *Future[T] {
	return newFuture[T](l)
}

// CreateTask wraps a coroutine in a Task and schedules its first step.
func CreateTask[T any](l *Loop, coro Coroutine[T]) *Task[T] {
	return newTask(l, coro)
}

// RunInExecutor offloads fn to the thread-pool executor, returning a future
// resolved with its result (or panic, wrapped as PanicError) once fn
// returns.
func (l *Loop) RunInExecutor(fn func() (any, error)) *Future[any] {
	return l.executor.submit(fn)
}

// Stop requests the loop drain and terminate. Thread-safe.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopRequested = true
	l.mu.Unlock()
	l.wake.notify()
}

// Run dispatches ready handles, timers, and I/O until Stop is called. It
// must be called from the goroutine that will own the loop; calling it
// re-entrantly is an error.
func (l *Loop) Run() error {
	if !l.state.TryTransition(stateAwake, stateRunning) {
		if l.state.Load() == stateRunning || l.state.Load() == stateSleeping {
			return ErrLoopAlreadyRunning
		}
		return ErrLoopTerminated
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer l.state.Store(stateTerminated)

	for {
		l.mu.Lock()
		stop := l.stopRequested
		l.mu.Unlock()
		if stop {
			l.state.Store(stateTerminating)
			break
		}
		l.runIteration()
	}

	l.executor.close()
	_ = l.poller.Close()
	l.wake.close()
	return nil
}

// runIteration performs exactly the four steps of spec.md §4.1's "Main
// loop."
func (l *Loop) runIteration() {
	now := l.clock.Now()
	deadline := now.Add(readyEpsilon)

	// 1. Move ready timers to the ready queue, discarding cancelled ones.
	for l.timers.Len() > 0 {
		top := l.timers[0]
		if top.handle.Cancelled() {
			heap.Pop(&l.timers)
			continue
		}
		if top.when.After(deadline) {
			break
		}
		heap.Pop(&l.timers)
		l.CallSoon(top.handle.fn)
	}

	// 2. Decide the selector timeout.
	l.mu.Lock()
	readyLen := len(l.readyQueue)
	l.mu.Unlock()

	var timeoutMs int
	switch {
	case readyLen > 0:
		timeoutMs = 0
	case l.timers.Len() > 0:
		d := l.timers[0].when.Sub(l.clock.Now())
		if d < 0 {
			d = 0
		}
		timeoutMs = int(d / time.Millisecond)
		if timeoutMs == 0 && d > 0 {
			timeoutMs = 1
		}
	default:
		timeoutMs = 1000 // bounded idle wait; re-checks Stop once per second
	}

	l.state.Store(stateSleeping)
	_, err := l.poller.Poll(timeoutMs)
	l.state.Store(stateRunning)
	if err != nil {
		l.handleAcceptFailure(err)
	}

	// 4. Run every handle that was in the ready queue at entry.
	l.mu.Lock()
	batch := l.readyQueue
	l.readyQueue = nil
	l.mu.Unlock()

	for _, h := range batch {
		l.runHandle(h)
	}
}

func (l *Loop) runHandle(h *Handle) {
	defer func() {
		if r := recover(); r != nil {
			pe := &PanicError{Value: r}
			l.logHandlePanic(pe)
		}
	}()
	h.run()
}

// handleAcceptFailure implements the poll-wide part of spec.md §4.1's
// "Failure semantics": every error returned by Poll, whatever its kind, is
// logged as a poll error. Per-fd listener
// backoff (EMFILE/ENFILE/ENOBUFS/ENOMEM) is applied by the stream listener
// itself, which calls BackoffFD on the specific fd that failed to accept;
// this method only handles a poll-wide error, which the selector only ever
// returns for conditions outside any single fd's control.
func (l *Loop) handleAcceptFailure(err error) {
	l.logPollError(err)
}

// BackoffFD temporarily deregisters fd after a resource-exhaustion error
// from accept(2), retrying after the loop's configured accept backoff.
func (l *Loop) BackoffFD(fd int) {
	h, hasReader := l.readers[fd]
	if !hasReader {
		return
	}
	l.logAcceptBackoff(fd, nil)
	_ = l.poller.Remove(fd)
	delay := l.cfg.acceptBackoff
	l.CallLater(delay, func() {
		if h.Cancelled() {
			return
		}
		_ = l.poller.Add(fd, IOReadable, func(ev IOEvent) { l.dispatchIO(fd, ev) })
	})
}
