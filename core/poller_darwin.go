//go:build darwin

package core

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

const maxFDs = 4096

type fdEntry struct {
	cb     ioCallback
	events IOEvent
	active bool
}

// kqueuePoller is the Darwin selector, grounded on
// eventloop/poller_darwin.go's FastPoller: one kqueue instance per loop,
// registrations translated to add/delete EVFILT_READ/EVFILT_WRITE kevents.
type kqueuePoller struct {
	kq       int
	eventBuf [256]unix.Kevent_t
	mu       sync.RWMutex
	fds      []fdEntry
	closed   atomic.Bool
}

func newPoller() (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueuePoller{kq: kq, fds: make([]fdEntry, maxFDs)}, nil
}

func (p *kqueuePoller) growLocked(fd int) {
	if fd < len(p.fds) {
		return
	}
	grown := make([]fdEntry, fd*2+1)
	copy(grown, p.fds)
	p.fds = grown
}

func (p *kqueuePoller) Add(fd int, events IOEvent, cb ioCallback) error {
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
	p.mu.Unlock()

	kevs := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if len(kevs) > 0 {
		if _, err := unix.Kevent(p.kq, kevs, nil, nil); err != nil {
			p.mu.Lock()
			p.fds[fd] = fdEntry{}
			p.mu.Unlock()
			return err
		}
	}
	return nil
}

func (p *kqueuePoller) Modify(fd int, events IOEvent) error {
	p.mu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.mu.Unlock()
		return ErrFDNotRegistered
	}
	old := p.fds[fd].events
	p.fds[fd].events = events
	p.mu.Unlock()

	if del := old &^ events; del != 0 {
		if kevs := eventsToKevents(fd, del, unix.EV_DELETE); len(kevs) > 0 {
			_, _ = unix.Kevent(p.kq, kevs, nil, nil)
		}
	}
	if add := events &^ old; add != 0 {
		if kevs := eventsToKevents(fd, add, unix.EV_ADD|unix.EV_ENABLE); len(kevs) > 0 {
			if _, err := unix.Kevent(p.kq, kevs, nil, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *kqueuePoller) Remove(fd int) error {
	p.mu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.mu.Unlock()
		return ErrFDNotRegistered
	}
	events := p.fds[fd].events
	p.fds[fd] = fdEntry{}
	p.mu.Unlock()

	if kevs := eventsToKevents(fd, events, unix.EV_DELETE); len(kevs) > 0 {
		_, _ = unix.Kevent(p.kq, kevs, nil, nil)
	}
	return nil
}

func (p *kqueuePoller) Poll(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1_000_000),
		}
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	p.dispatch(n)
	return n, nil
}

func (p *kqueuePoller) dispatch(n int) {
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Ident)
		p.mu.RLock()
		var entry fdEntry
		if fd >= 0 && fd < len(p.fds) {
			entry = p.fds[fd]
		}
		p.mu.RUnlock()
		if entry.active && entry.cb != nil {
			entry.cb(keventToEvents(&p.eventBuf[i]))
		}
	}
}

func (p *kqueuePoller) Close() error {
	p.closed.Store(true)
	return unix.Close(p.kq)
}

func eventsToKevents(fd int, events IOEvent, flags uint16) []unix.Kevent_t {
	var kevs []unix.Kevent_t
	if events&IOReadable != 0 {
		kevs = append(kevs, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&IOWritable != 0 {
		kevs = append(kevs, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return kevs
}

func keventToEvents(kev *unix.Kevent_t) IOEvent {
	var events IOEvent
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= IOReadable
	case unix.EVFILT_WRITE:
		events |= IOWritable
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= IOError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= IOHangup
	}
	return events
}
