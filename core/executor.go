package core

import (
	"sync"
	"sync/atomic"
	"time"
)

// executorIdleTimeout is how long a worker above the pool's "keep" count
// waits for a job before exiting (spec.md §5, "a minimum 'keep' count of
// workers is retained across idle periods").
const executorIdleTimeout = 30 * time.Second

type execJob struct {
	fn  func() (any, error)
	fut *Future[any]
}

// Executor is a bounded goroutine pool used to offload blocking calls
// (spec.md §5, "Executor"). Grounded on eventloop/promisify.go's
// goroutine-launch-and-resolve-on-loop-thread pattern, generalized here
// from Promisify's one-shot goroutine into a persistent worker queue with a
// minimum retained worker count.
type Executor struct {
	l      *Loop
	jobs   chan execJob
	size   int
	keep   int
	active atomic.Int32
	wg     sync.WaitGroup
	closed atomic.Bool
}

func newExecutor(l *Loop, size, keep int) *Executor {
	if size <= 0 {
		size = 1
	}
	if keep > size {
		keep = size
	}
	e := &Executor{l: l, jobs: make(chan execJob, 1024), size: size, keep: keep}
	for i := 0; i < keep; i++ {
		e.spawnWorker(false)
	}
	return e
}

// submit enqueues fn, spawning an additional worker (up to size) if the
// queue is backed up and the pool has room to grow. Returns a future
// resolved on the loop thread once fn returns (spec.md §4.1,
// "run_in_executor... return a future").
func (e *Executor) submit(fn func() (any, error)) *Future[any] {
	fut := newFuture[any](e.l)
	if e.closed.Load() {
		_ = fut.SetException(ErrLoopTerminated)
		return fut
	}
	job := execJob{fn: fn, fut: fut}
	select {
	case e.jobs <- job:
	default:
		if int(e.active.Load()) < e.size {
			e.spawnWorker(true)
		}
		e.jobs <- job
	}
	return fut
}

func (e *Executor) spawnWorker(elastic bool) {
	e.active.Add(1)
	e.wg.Add(1)
	go e.workerLoop(elastic)
}

func (e *Executor) workerLoop(elastic bool) {
	defer e.wg.Done()
	defer e.active.Add(-1)

	idle := time.NewTimer(executorIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case job, ok := <-e.jobs:
			if !ok {
				return
			}
			e.run(job)
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(executorIdleTimeout)
		case <-idle.C:
			if elastic && int(e.active.Load()) > e.keep {
				return
			}
			idle.Reset(executorIdleTimeout)
		}
	}
}

// run executes job.fn, recovering a panic as *PanicError and detecting a
// runtime.Goexit as ErrGoexit, exactly as eventloop/promisify.go does for
// its one-shot goroutines; the result is always resolved back on the loop
// thread via CallSoonThreadSafe.
func (e *Executor) run(job execJob) {
	completed := false
	defer func() {
		if r := recover(); r != nil {
			pe := &PanicError{Value: r}
			e.l.CallSoonThreadSafe(func() { _ = job.fut.SetException(pe) })
			return
		}
		if !completed {
			e.l.CallSoonThreadSafe(func() { _ = job.fut.SetException(ErrGoexit) })
		}
	}()

	result, err := job.fn()
	completed = true
	e.l.CallSoonThreadSafe(func() {
		if err != nil {
			_ = job.fut.SetException(err)
		} else {
			_ = job.fut.SetResult(result)
		}
	})
}

func (e *Executor) close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	close(e.jobs)
	e.wg.Wait()
}
