package core

// wakePipe is the event loop's self-pipe (spec.md §3, "a self-pipe (two
// connected sockets) for cross-thread wakeup"). call_soon_thread_safe and
// friends write a single byte to wake a loop that may be blocked in the
// selector; the loop thread drains it on wake-up.
type wakePipe struct {
	readFd  int
	writeFd int
}

func newWakePipe() (*wakePipe, error) {
	r, w, err := createWakeFds()
	if err != nil {
		return nil, err
	}
	return &wakePipe{readFd: r, writeFd: w}, nil
}

// notify writes a single byte, waking a loop blocked in Poll. Safe to call
// from any goroutine.
func (w *wakePipe) notify() {
	writeWakeByte(w.writeFd)
}

// drain empties the pipe after a wake-up, so a level-triggered selector
// does not immediately re-fire.
func (w *wakePipe) drain() {
	drainWakeFd(w.readFd)
}

func (w *wakePipe) close() {
	closeWakeFds(w.readFd, w.writeFd)
}
