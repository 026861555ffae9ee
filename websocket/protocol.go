// Package websocket implements a WebSocket client built on httpproto's frame
// codec and the transport/core stack: a handshake over HTTP/1.1 Upgrade,
// then masked frame read/write over the same connection (spec.md §4.7,
// "WebSocket frame reader"; §6, "WebSocket frame format").
package websocket

import (
	"net"

	"github.com/HuyaneMatsu/scarletio/httpproto"
	"github.com/HuyaneMatsu/scarletio/transport"
)

// wsProtocol bridges a transport's byte events into an httpproto
// PayloadStream, the same role httpclient's clientProtocol plays for plain
// HTTP connections.
type wsProtocol struct {
	transport.BaseProtocol

	raw *httpproto.PayloadStream
	t   transport.Transport
}

func newWSProtocol() *wsProtocol {
	p := &wsProtocol{}
	p.raw = httpproto.NewPayloadStream(p)
	return p
}

func (p *wsProtocol) ConnectionMade(t transport.Transport) { p.t = t }
func (p *wsProtocol) DataReceived(data []byte)             { p.raw.AddReceivedChunk(data) }
func (p *wsProtocol) EOFReceived() bool                    { p.raw.Complete(nil); return false }
func (p *wsProtocol) ConnectionLost(err error)              { p.raw.Complete(err) }
func (p *wsProtocol) DatagramReceived([]byte, net.Addr)     {}

func (p *wsProtocol) Pause()  {}
func (p *wsProtocol) Resume() {}
