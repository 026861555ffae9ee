// Package httpclient implements an HTTP/1.1 client (request/response
// round-trips, redirects, a keep-alive connection pool, and TLS) built on
// core.Loop, transport, and httpproto.
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/HuyaneMatsu/scarletio/core"
	"github.com/HuyaneMatsu/scarletio/transport"
	"github.com/HuyaneMatsu/scarletio/webcommon"
)

// connectionKey identifies a pool bucket: a (host, port, tls) triple
// (spec.md's SPEC_FULL.md addition, "pools keep-alive TCP connections per
// (host, port, tls) key", grounded on connector_tcp.py's ConnectionKey).
type connectionKey struct {
	host string
	port int
	tls  bool
}

func (k connectionKey) String() string {
	scheme := "http"
	if k.tls {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, k.host, k.port)
}

// pooledConn is one idle, reusable connection sitting in the pool.
type pooledConn struct {
	stream  *transport.StreamTransport
	ssl     *transport.SSLTransport
	proto   *clientProtocol
	expires time.Time
}

// Connector owns a pool of idle keep-alive connections, grounded on
// connector_tcp.py's ConnectorTCP: connections are bucketed per
// connectionKey, and idle ones past their advertised Keep-Alive timeout are
// evicted by a periodic sweep.
type Connector struct {
	loop *core.Loop

	mu   sync.Mutex
	pool map[connectionKey][]*pooledConn

	sweepHandle *core.Handle
}

// NewConnector constructs a connector bound to loop and starts its idle
// connection sweeper.
func NewConnector(loop *core.Loop) *Connector {
	c := &Connector{loop: loop, pool: make(map[connectionKey][]*pooledConn)}
	c.scheduleSweep()
	return c
}

func (c *Connector) scheduleSweep() {
	c.sweepHandle = loopCallLater(c.loop, 30*time.Second, c.sweep)
}

func loopCallLater(loop *core.Loop, d time.Duration, fn func()) *core.Handle {
	var h *core.Handle
	h = loop.CallLater(d, func() {
		fn()
	})
	return h
}

func (c *Connector) sweep() {
	now := c.loop.Clock().Now()
	c.mu.Lock()
	for key, conns := range c.pool {
		live := conns[:0]
		for _, pc := range conns {
			if pc.expires.After(now) {
				live = append(live, pc)
			} else {
				pc.stream.Close()
			}
		}
		if len(live) == 0 {
			delete(c.pool, key)
		} else {
			c.pool[key] = live
		}
	}
	c.mu.Unlock()
	c.scheduleSweep()
}

// acquire pops a pooled connection for key if one is available and still
// live, or nil if a fresh dial is needed.
func (c *Connector) acquire(key connectionKey) *pooledConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	conns := c.pool[key]
	now := c.loop.Clock().Now()
	for len(conns) > 0 {
		pc := conns[len(conns)-1]
		conns = conns[:len(conns)-1]
		if pc.expires.After(now) {
			c.pool[key] = conns
			return pc
		}
		pc.stream.Close()
	}
	delete(c.pool, key)
	return nil
}

// release returns a connection to the pool with the given keep-alive
// budget, or closes it if the server disallows reuse.
func (c *Connector) release(key connectionKey, pc *pooledConn, keepAlive webcommon.KeepAliveInfo) {
	if keepAlive.Max == 0 && keepAlive.TimeoutSeconds <= 0 {
		pc.stream.Close()
		return
	}
	pc.expires = c.loop.Clock().Now().Add(time.Duration(keepAlive.TimeoutSeconds) * time.Second)
	c.mu.Lock()
	c.pool[key] = append(c.pool[key], pc)
	c.mu.Unlock()
}

// AcquireOrDial returns a pooled connection for key if one is idle and
// live, otherwise dials a fresh one.
func (c *Connector) AcquireOrDial(y *core.Yielder, key connectionKey, tlsConfig *tls.Config) (*pooledConn, error) {
	if pc := c.acquire(key); pc != nil {
		return pc, nil
	}
	return c.dial(y, key, tlsConfig)
}

// Close closes every pooled connection and stops the sweeper.
func (c *Connector) Close() {
	if c.sweepHandle != nil {
		c.sweepHandle.Cancel()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, conns := range c.pool {
		for _, pc := range conns {
			pc.stream.Close()
		}
		delete(c.pool, key)
	}
}

// dial establishes a fresh connection for key, performing a TLS handshake
// when key.tls is set. It must be called from within a task coroutine, so
// the Dial/handshake futures can be awaited without blocking the loop.
func (c *Connector) dial(y *core.Yielder, key connectionKey, tlsConfig *tls.Config) (*pooledConn, error) {
	proto := newClientProtocol()
	streamFut := transport.DialStream(c.loop, "tcp", net.JoinHostPort(key.host, fmt.Sprintf("%d", key.port)), proto)
	result, err := core.Await(y, streamFut)
	if err != nil {
		return nil, err
	}

	if !key.tls {
		return &pooledConn{stream: result, proto: proto}, nil
	}

	cfg := tlsConfig
	if cfg == nil {
		cfg = &tls.Config{ServerName: key.host}
	} else if cfg.ServerName == "" {
		clone := cfg.Clone()
		clone.ServerName = key.host
		cfg = clone
	}
	sslFut := transport.WrapClient(c.loop, result, cfg, proto)
	sslResult, err := core.Await(y, sslFut)
	if err != nil {
		return nil, err
	}
	return &pooledConn{stream: result, ssl: sslResult, proto: proto}, nil
}
