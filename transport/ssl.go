package transport

import (
	"crypto/tls"
	"io"
	"net"
	"sync"
	"time"

	"github.com/HuyaneMatsu/scarletio/core"
)

// sslReadSize bounds a single decrypted-plaintext read from the TLS
// session.
const sslReadSize = 32 * 1024

// sslConnAdapter presents the inner byte-level Transport as a net.Conn, the
// shape crypto/tls requires. Reads are fed by DataReceived callbacks from
// the inner transport's protocol hookup (SSLTransport itself); writes are
// forwarded straight to the inner transport, which already buffers and
// backpressures on the loop thread.
type sslConnAdapter struct {
	inner  Transport
	readCh chan []byte
	eofCh  chan struct{}
	rest   []byte
	closed bool
	mu     sync.Mutex
}

func newSSLConnAdapter(inner Transport) *sslConnAdapter {
	return &sslConnAdapter{inner: inner, readCh: make(chan []byte, 64), eofCh: make(chan struct{})}
}

func (a *sslConnAdapter) feed(data []byte) {
	cp := append([]byte(nil), data...)
	a.readCh <- cp
}

func (a *sslConnAdapter) feedEOF() {
	close(a.eofCh)
}

func (a *sslConnAdapter) Read(p []byte) (int, error) {
	if len(a.rest) > 0 {
		n := copy(p, a.rest)
		a.rest = a.rest[n:]
		return n, nil
	}
	select {
	case chunk, ok := <-a.readCh:
		if !ok {
			return 0, io.EOF
		}
		n := copy(p, chunk)
		if n < len(chunk) {
			a.rest = chunk[n:]
		}
		return n, nil
	case <-a.eofCh:
		return 0, io.EOF
	}
}

func (a *sslConnAdapter) Write(p []byte) (int, error) {
	a.inner.Write(p)
	return len(p), nil
}

func (a *sslConnAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.inner.Close()
	return nil
}

func (a *sslConnAdapter) LocalAddr() net.Addr  { return addrOrNil(a.inner.GetExtraInfo("sockname")) }
func (a *sslConnAdapter) RemoteAddr() net.Addr { return addrOrNil(a.inner.GetExtraInfo("peername")) }

// Deadlines are not meaningful here: the adapter's Read blocks only on the
// loop-fed channel, and Write never blocks (it hands off to the loop's own
// non-blocking write buffer). These exist solely to satisfy net.Conn.
func (a *sslConnAdapter) SetDeadline(time.Time) error      { return nil }
func (a *sslConnAdapter) SetReadDeadline(time.Time) error  { return nil }
func (a *sslConnAdapter) SetWriteDeadline(time.Time) error { return nil }

func addrOrNil(v any) net.Addr {
	if a, ok := v.(net.Addr); ok {
		return a
	}
	return nil
}

// SSLTransport is a transport-of-transports: it presents the Protocol
// interface downward (to receive ciphertext from an inner byte transport)
// and the Transport interface upward (to an application Protocol that only
// ever sees plaintext), driving a crypto/tls state machine in between
// (spec.md §4.6, "SSL wrapper"). crypto/tls has no non-blocking API, so the
// handshake and the plaintext read loop run on dedicated goroutines bridged
// back to the loop thread via CallSoonThreadSafe — the same bridging
// pattern core.Executor uses for blocking offload, applied here because a
// single long-lived TLS session (not a one-shot call) needs it.
type SSLTransport struct {
	loop    *core.Loop
	inner   Transport
	adapter *sslConnAdapter
	conn    *tls.Conn
	upward  Protocol

	waiter *core.Future[*SSLTransport]

	writeMu sync.Mutex
	closed  bool
}

// WrapClient starts a TLS client handshake over inner, an already-connected
// byte transport (typically a *StreamTransport from DialStream). The
// returned future resolves once the handshake completes.
func WrapClient(loop *core.Loop, inner *StreamTransport, cfg *tls.Config, upward Protocol) *core.Future[*SSLTransport] {
	return wrap(loop, inner, upward, func(conn net.Conn) *tls.Conn { return tls.Client(conn, cfg) })
}

// WrapServer starts a TLS server handshake over inner.
func WrapServer(loop *core.Loop, inner *StreamTransport, cfg *tls.Config, upward Protocol) *core.Future[*SSLTransport] {
	return wrap(loop, inner, upward, func(conn net.Conn) *tls.Conn { return tls.Server(conn, cfg) })
}

func wrap(loop *core.Loop, inner *StreamTransport, upward Protocol, makeConn func(net.Conn) *tls.Conn) *core.Future[*SSLTransport] {
	adapter := newSSLConnAdapter(inner)
	s := &SSLTransport{
		loop:    loop,
		inner:   inner,
		adapter: adapter,
		conn:    makeConn(adapter),
		upward:  upward,
		waiter:  core.CreateFuture[*SSLTransport](loop),
	}
	// Re-point the inner transport's protocol callbacks at s, so ciphertext
	// read events feed the TLS adapter instead of whatever protocol the
	// caller originally attached (DialStream's proto argument is only used
	// to obtain a connected StreamTransport; it is not driven further once
	// wrapped).
	inner.rebindProtocol(s)
	go s.handshakeAndPump()
	return s.waiter
}

func (s *SSLTransport) handshakeAndPump() {
	err := s.conn.Handshake()
	if err != nil {
		s.loop.CallSoonThreadSafe(func() {
			_ = s.waiter.SetException(err)
		})
		return
	}
	s.loop.CallSoonThreadSafe(func() {
		s.upward.ConnectionMade(s)
		_ = s.waiter.SetResult(s)
	})

	buf := make([]byte, sslReadSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			s.loop.CallSoonThreadSafe(func() { s.upward.DataReceived(chunk) })
		}
		if err != nil {
			s.loop.CallSoonThreadSafe(func() { s.finishClose(err) })
			return
		}
	}
}

// ConnectionMade/DataReceived/etc satisfy Protocol so s can be installed as
// the inner transport's receiver, feeding ciphertext to the TLS adapter.
func (s *SSLTransport) ConnectionMade(Transport)          {}
func (s *SSLTransport) DataReceived(data []byte)          { s.adapter.feed(data) }
func (s *SSLTransport) DatagramReceived([]byte, net.Addr) {}
func (s *SSLTransport) EOFReceived() bool                 { s.adapter.feedEOF(); return false }
func (s *SSLTransport) ConnectionLost(err error)          { s.finishClose(err) }
func (s *SSLTransport) PauseWriting()                     { s.upward.PauseWriting() }
func (s *SSLTransport) ResumeWriting()                    { s.upward.ResumeWriting() }

// Write encrypts and sends data. crypto/tls.Conn.Write is not safe to call
// concurrently with itself, so writes are serialized with writeMu; the
// actual write runs synchronously here since the inner transport's own
// Write (called via adapter) never blocks.
func (s *SSLTransport) Write(data []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return
	}
	_, _ = s.conn.Write(data)
}

func (s *SSLTransport) WriteEOF() { s.inner.WriteEOF() }

func (s *SSLTransport) Close() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return
	}
	_ = s.conn.Close()
}

func (s *SSLTransport) Abort() { s.inner.Abort() }

func (s *SSLTransport) finishClose(err error) {
	if s.closed {
		return
	}
	s.closed = true
	if err == io.EOF {
		err = nil
	}
	s.upward.ConnectionLost(err)
}

func (s *SSLTransport) GetExtraInfo(name string) any {
	if name == "tls_connection_state" {
		return s.conn.ConnectionState()
	}
	return s.inner.GetExtraInfo(name)
}

func (s *SSLTransport) SetWatermarks(low, high int) { s.inner.SetWatermarks(low, high) }
func (s *SSLTransport) Watermarks() (int, int)      { return s.inner.Watermarks() }
