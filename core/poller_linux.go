//go:build linux

package core

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// maxFDs bounds the direct-indexed fd table; registering a larger fd falls
// back to growing the slice, grounded on eventloop/poller_linux.go's
// fixed-array-with-growth approach.
const maxFDs = 4096

type fdEntry struct {
	cb     ioCallback
	events IOEvent
	active bool
}

// epollPoller is the Linux selector, grounded on eventloop/poller_linux.go's
// FastPoller: a single epoll instance, a version counter that discards
// stale dispatch results racing a concurrent registration change, and
// inline callback execution copied out from under a read lock.
type epollPoller struct {
	epfd     int
	version  atomic.Uint64
	eventBuf [256]unix.EpollEvent
	mu       sync.RWMutex
	fds      []fdEntry
	closed   atomic.Bool
}

func newPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{
		epfd: epfd,
		fds:  make([]fdEntry, maxFDs),
	}, nil
}

func (p *epollPoller) growLocked(fd int) {
	if fd < len(p.fds) {
		return
	}
	grown := make([]fdEntry, fd*2+1)
	copy(grown, p.fds)
	p.fds = grown
}

func (p *epollPoller) Add(fd int, events IOEvent, cb ioCallback) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	p.mu.Lock()
	p.growLocked(fd)
	if p.fds[fd].active {
		p.mu.Unlock()
		return ErrFDAlreadyRegistered
	}
	p.fds[fd] = fdEntry{cb: cb, events: events, active: true}
	p.version.Add(1)
	p.mu.Unlock()

	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		p.mu.Lock()
		p.fds[fd] = fdEntry{}
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *epollPoller) Modify(fd int, events IOEvent) error {
	p.mu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.mu.Unlock()
		return ErrFDNotRegistered
	}
	p.fds[fd].events = events
	p.version.Add(1)
	p.mu.Unlock()

	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (p *epollPoller) Remove(fd int) error {
	p.mu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.mu.Unlock()
		return ErrFDNotRegistered
	}
	p.fds[fd] = fdEntry{}
	p.version.Add(1)
	p.mu.Unlock()
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Poll(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}
	v := p.version.Load()
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	if p.version.Load() != v {
		// A registration changed mid-wait; the returned fds may already be
		// stale (e.g. reused after Close+Add), so discard this round.
		return 0, nil
	}
	p.dispatch(n)
	return n, nil
}

func (p *epollPoller) dispatch(n int) {
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		p.mu.RLock()
		var entry fdEntry
		if fd >= 0 && fd < len(p.fds) {
			entry = p.fds[fd]
		}
		p.mu.RUnlock()
		if entry.active && entry.cb != nil {
			entry.cb(epollToEvents(p.eventBuf[i].Events))
		}
	}
}

func (p *epollPoller) Close() error {
	p.closed.Store(true)
	return unix.Close(p.epfd)
}

func eventsToEpoll(events IOEvent) uint32 {
	var e uint32
	if events&IOReadable != 0 {
		e |= unix.EPOLLIN
	}
	if events&IOWritable != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) IOEvent {
	var events IOEvent
	if e&unix.EPOLLIN != 0 {
		events |= IOReadable
	}
	if e&unix.EPOLLOUT != 0 {
		events |= IOWritable
	}
	if e&unix.EPOLLERR != 0 {
		events |= IOError
	}
	if e&unix.EPOLLHUP != 0 || e&unix.EPOLLRDHUP != 0 {
		events |= IOHangup
	}
	return events
}
