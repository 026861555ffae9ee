package httpclient

import (
	"net"

	"github.com/HuyaneMatsu/scarletio/httpproto"
	"github.com/HuyaneMatsu/scarletio/transport"
)

// clientProtocol bridges a transport's byte events into an httpproto
// PayloadStream, the "incoming bytes" deque that ReadHTTPResponse consumes
// (spec.md §4.7, "Incoming bytes are appended to a chunk deque").
type clientProtocol struct {
	transport.BaseProtocol

	raw *httpproto.PayloadStream
	t   transport.Transport
}

func newClientProtocol() *clientProtocol {
	p := &clientProtocol{}
	p.raw = httpproto.NewPayloadStream(p)
	return p
}

func (p *clientProtocol) ConnectionMade(t transport.Transport) { p.t = t }
func (p *clientProtocol) DataReceived(data []byte)             { p.raw.AddReceivedChunk(data) }
func (p *clientProtocol) EOFReceived() bool                    { p.raw.Complete(nil); return false }
func (p *clientProtocol) ConnectionLost(err error)             { p.raw.Complete(err) }
func (p *clientProtocol) DatagramReceived([]byte, net.Addr)    {}

// Pause/Resume implement httpproto.Backpressure, applying read-side
// backpressure from the payload stream back onto the socket by... the
// read side of a stream transport has no pause primitive in this module
// (reads are always ≤64KB per event), so these are no-ops; the payload
// stream's own watermark bookkeeping still gates how large its buffer is
// allowed to grow before a producer would need to pause, for a future
// transport that does support read-side flow control.
func (p *clientProtocol) Pause()  {}
func (p *clientProtocol) Resume() {}
