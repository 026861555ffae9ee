package core

import "sync/atomic"

// loopState is the lifecycle of a Loop. Values are ordered to match the
// three-way lifecycle trio from spec.md §3 ("running/should_run/started"),
// collapsed into a single atomic word, grounded on the teacher's
// eventloop/state.go FastState.
type loopState uint32

const (
	// stateAwake: the loop has been created but Run has not been called.
	stateAwake loopState = iota
	// stateRunning: the loop is actively dispatching handles/timers/I/O.
	stateRunning
	// stateSleeping: the loop is blocked in the selector poll.
	stateSleeping
	// stateTerminating: Stop/Close has been requested; draining in progress.
	stateTerminating
	// stateTerminated: the loop has fully shut down.
	stateTerminated
)

func (s loopState) String() string {
	switch s {
	case stateAwake:
		return "awake"
	case stateRunning:
		return "running"
	case stateSleeping:
		return "sleeping"
	case stateTerminating:
		return "terminating"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// atomicState is a lock-free state machine for the loop's lifecycle.
type atomicState struct {
	v atomic.Uint32
}

func newAtomicState() *atomicState {
	s := &atomicState{}
	s.v.Store(uint32(stateAwake))
	return s
}

func (s *atomicState) Load() loopState { return loopState(s.v.Load()) }

func (s *atomicState) Store(v loopState) { s.v.Store(uint32(v)) }

func (s *atomicState) TryTransition(from, to loopState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// running reports whether the loop is actively processing or polling.
func (s *atomicState) running() bool {
	v := s.Load()
	return v == stateRunning || v == stateSleeping
}

// acceptsWork reports whether new handles/tasks may still be queued.
func (s *atomicState) acceptsWork() bool {
	v := s.Load()
	return v != stateTerminated
}
