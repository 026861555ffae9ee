package websocket

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha1"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/HuyaneMatsu/scarletio/core"
	"github.com/HuyaneMatsu/scarletio/httpproto"
	"github.com/HuyaneMatsu/scarletio/transport"
	"github.com/HuyaneMatsu/scarletio/webcommon"
)

// websocketGUID is appended to the client's handshake key before hashing,
// per RFC 6455 §1.3.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// ErrHandshakeFailed is returned when the server's Upgrade response doesn't
// satisfy RFC 6455's handshake requirements (wrong status, missing or
// mismatched Sec-WebSocket-Accept).
var ErrHandshakeFailed = errors.New("websocket: handshake failed")

// Dial connects to rawURL (ws:// or wss://), performs the HTTP/1.1 Upgrade
// handshake, and returns a Client ready to send and receive frames. Dial may
// be called from any goroutine; the connection itself is driven by loop.
func Dial(ctx context.Context, loop *core.Loop, rawURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("websocket: %w", err)
	}

	var tlsRequested bool
	switch u.Scheme {
	case "ws":
		tlsRequested = false
	case "wss":
		tlsRequested = true
	default:
		return nil, fmt.Errorf("websocket: unsupported scheme %q", u.Scheme)
	}

	cfg := resolveOptions(opts)

	type outcome struct {
		client *Client
		err    error
	}
	done := make(chan outcome, 1)
	ready := make(chan struct{})
	var task *core.Task[*Client]

	loop.CallSoonThreadSafe(func() {
		task = core.CreateTask(loop, func(y *core.Yielder) (*Client, error) {
			return dialOnLoop(y, loop, u, tlsRequested, cfg)
		})
		task.Future().AddDoneCallback(func(f *core.Future[*Client]) {
			client, err := f.Result()
			done <- outcome{client, err}
		})
		close(ready)
	})

	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case o := <-done:
		return o.client, o.err
	case <-ctx.Done():
		loop.CallSoonThreadSafe(func() { task.Cancel(ctx.Err()) })
		o := <-done
		return o.client, o.err
	}
}

func dialOnLoop(y *core.Yielder, loop *core.Loop, u *url.URL, useTLS bool, cfg *clientConfig) (*Client, error) {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if useTLS {
			port = "443"
		} else {
			port = "80"
		}
	}

	proto := newWSProtocol()
	streamFut := transport.DialStream(loop, "tcp", net.JoinHostPort(host, port), proto)
	stream, err := core.Await(y, streamFut)
	if err != nil {
		return nil, err
	}

	var t transport.Transport = stream
	if useTLS {
		tlsCfg := cfg.tlsConfig
		if tlsCfg == nil {
			tlsCfg = &tls.Config{ServerName: host}
		} else if tlsCfg.ServerName == "" {
			clone := tlsCfg.Clone()
			clone.ServerName = host
			tlsCfg = clone
		}
		sslFut := transport.WrapClient(loop, stream, tlsCfg, proto)
		ssl, err := core.Await(y, sslFut)
		if err != nil {
			return nil, err
		}
		t = ssl
	}

	key := generateHandshakeKey()

	header := httpproto.NewHeaders()
	for _, name := range cfg.header.Names() {
		for _, v := range cfg.header.Values(name) {
			header.Add(name, v)
		}
	}
	if _, ok := header.Get("Host"); !ok {
		portNum, _ := strconv.Atoi(port)
		hostPort := 0
		if (useTLS && portNum != 443) || (!useTLS && portNum != 80) {
			hostPort = portNum
		}
		header.Add("Host", webcommon.FormatHost(host, hostPort))
	}
	header.Add("Upgrade", "websocket")
	header.Add("Connection", "Upgrade")
	header.Add("Sec-WebSocket-Key", key)
	header.Add("Sec-WebSocket-Version", "13")
	if len(cfg.subprotocols) > 0 {
		header.Add("Sec-WebSocket-Protocol", strings.Join(cfg.subprotocols, ", "))
	}

	target := u.RequestURI()
	var buf bytes.Buffer
	if err := httpproto.WriteRequestLine(&buf, "GET", target, "HTTP/1.1"); err != nil {
		return nil, err
	}
	if err := httpproto.WriteHeaders(&buf, header, false); err != nil {
		return nil, err
	}
	t.Write(buf.Bytes())

	msgFut := httpproto.ReadHTTPResponse(loop, proto.raw)
	msg, err := core.Await(y, msgFut)
	if err != nil {
		return nil, err
	}

	if msg.Response.Code != 101 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrHandshakeFailed, msg.Response.Code)
	}
	accept, ok := msg.Headers.Get("Sec-WebSocket-Accept")
	if !ok || accept != computeAccept(key) {
		return nil, fmt.Errorf("%w: Sec-WebSocket-Accept mismatch", ErrHandshakeFailed)
	}

	subprotocol, _ := msg.Headers.Get("Sec-WebSocket-Protocol")

	client := newClient(loop, t, proto.raw, subprotocol)
	client.startReadLoop()
	return client, nil
}

// generateHandshakeKey returns a fresh base64-encoded 16-byte
// Sec-WebSocket-Key, per RFC 6455 §4.1.
func generateHandshakeKey() string {
	var raw [16]byte
	_, _ = rand.Read(raw[:])
	return base64.StdEncoding.EncodeToString(raw[:])
}

// computeAccept derives the expected Sec-WebSocket-Accept value for key.
func computeAccept(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// generateMaskKey returns a fresh 4-byte client-to-server frame mask, per
// RFC 6455 §5.3 ("the client MUST mask all frames").
func generateMaskKey() []byte {
	key := make([]byte, 4)
	_, _ = rand.Read(key)
	return key
}
