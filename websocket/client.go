package websocket

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/HuyaneMatsu/scarletio/core"
	"github.com/HuyaneMatsu/scarletio/httpproto"
	"github.com/HuyaneMatsu/scarletio/transport"
)

// CloseNormalClosure is the status code for a clean, expected shutdown
// (RFC 6455 §7.4.1).
const CloseNormalClosure = 1000

// Message is one complete, defragmented WebSocket message.
type Message struct {
	Opcode  int
	Payload []byte
}

type readResult struct {
	msg Message
	err error
}

// Client is a connected WebSocket: Send* queues an outgoing frame from any
// goroutine, ReadMessage delivers the next complete inbound message.
type Client struct {
	loop *core.Loop
	t    transport.Transport
	raw  *httpproto.PayloadStream

	// Subprotocol is the Sec-WebSocket-Protocol the server selected, or ""
	// if none was negotiated.
	Subprotocol string

	results chan readResult
}

func newClient(loop *core.Loop, t transport.Transport, raw *httpproto.PayloadStream, subprotocol string) *Client {
	return &Client{
		loop:        loop,
		t:           t,
		raw:         raw,
		Subprotocol: subprotocol,
		results:     make(chan readResult, 64),
	}
}

// startReadLoop spawns the background task that reads and defragments
// frames off raw, replying to pings and the close handshake as it goes.
func (c *Client) startReadLoop() {
	core.CreateTask[struct{}](c.loop, func(y *core.Yielder) (struct{}, error) {
		c.readLoop(y)
		return struct{}{}, nil
	})
}

func (c *Client) readLoop(y *core.Yielder) {
	var fragments []byte
	var fragmentOpcode int

	for {
		frameFut := httpproto.ReadWebSocketFrame(c.loop, c.raw)
		frame, err := core.Await(y, frameFut)
		if err != nil {
			c.results <- readResult{err: err}
			close(c.results)
			return
		}

		switch frame.Opcode {
		case httpproto.OpPing:
			c.writeFrame(httpproto.OpPong, frame.Payload)

		case httpproto.OpPong:
			// No application-visible event; a pong just confirms liveness.

		case httpproto.OpClose:
			c.writeFrame(httpproto.OpClose, frame.Payload)
			c.t.Close()
			c.results <- readResult{msg: Message{Opcode: httpproto.OpClose, Payload: frame.Payload}}
			close(c.results)
			return

		case httpproto.OpContinuation:
			fragments = append(fragments, frame.Payload...)
			if frame.Fin {
				c.results <- readResult{msg: Message{Opcode: fragmentOpcode, Payload: fragments}}
				fragments = nil
			}

		default: // OpText, OpBinary
			if frame.Fin {
				c.results <- readResult{msg: Message{Opcode: frame.Opcode, Payload: frame.Payload}}
			} else {
				fragmentOpcode = frame.Opcode
				fragments = append([]byte(nil), frame.Payload...)
			}
		}
	}
}

// ReadMessage blocks until the next complete message arrives, the
// connection closes cleanly (returning io.EOF), or ctx is done.
func (c *Client) ReadMessage(ctx context.Context) (Message, error) {
	select {
	case r, ok := <-c.results:
		if !ok {
			return Message{}, io.EOF
		}
		if r.err != nil {
			return Message{}, r.err
		}
		return r.msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// writeFrame masks and writes a single unfragmented frame. Must only be
// called from the loop thread.
func (c *Client) writeFrame(opcode int, payload []byte) {
	c.t.Write(httpproto.EncodeWebSocketFrame(opcode, payload, generateMaskKey()))
}

// Send queues a single frame of the given opcode from any goroutine.
func (c *Client) Send(ctx context.Context, opcode int, payload []byte) error {
	done := make(chan struct{})
	c.loop.CallSoonThreadSafe(func() {
		c.writeFrame(opcode, payload)
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendText sends a text frame.
func (c *Client) SendText(ctx context.Context, s string) error {
	return c.Send(ctx, httpproto.OpText, []byte(s))
}

// SendBinary sends a binary frame.
func (c *Client) SendBinary(ctx context.Context, data []byte) error {
	return c.Send(ctx, httpproto.OpBinary, data)
}

// Ping sends a ping frame carrying payload.
func (c *Client) Ping(ctx context.Context, payload []byte) error {
	return c.Send(ctx, httpproto.OpPing, payload)
}

// Close sends a close frame with code and reason. It does not wait for the
// server's close frame in reply: the read loop releases the underlying
// connection when that frame arrives, so callers that need a clean
// bidirectional close should keep reading via ReadMessage (which delivers
// the server's close frame, then io.EOF) after calling Close.
func (c *Client) Close(ctx context.Context, code int, reason string) error {
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload[:2], uint16(code))
	copy(payload[2:], reason)

	return c.Send(ctx, httpproto.OpClose, payload)
}
