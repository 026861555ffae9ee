package httpclient

import (
	"context"
	"net/http"

	"github.com/HuyaneMatsu/scarletio/core"
	"github.com/HuyaneMatsu/scarletio/httpproto"
)

// Response is the result of a single hop of Client.Do. Body streams in as
// the underlying connection delivers more bytes; ReadAll blocks (with
// ctx cancellation) until it is fully buffered.
type Response struct {
	StatusCode int
	Status     string
	Header     *httpproto.Headers
	Body       *httpproto.PayloadStream

	// Request is the request that produced this response (after any
	// redirect rewriting for this particular hop).
	Request *Request

	// History holds every response that preceded this one across redirect
	// hops, oldest first, mirroring http_client.py's ClientResponse.history.
	History []*Response

	loop *core.Loop
}

// ReadAll drains Body to completion and returns every byte received.
// Registering the read must happen on the owning loop's thread (Body is
// only safe for one producer, the loop, and one consumer goroutine at a
// time — see httpproto.PayloadStream's doc comment); once the stream
// completes no further writes occur, so the actual byte copy in get() is
// safe to run on the caller's own goroutine.
func (r *Response) ReadAll(ctx context.Context) ([]byte, error) {
	var ch <-chan struct{}
	var get func() ([]byte, error)
	registered := make(chan struct{})
	r.loop.CallSoonThreadSafe(func() {
		ch, get = r.Body.ReadToEnd()
		close(registered)
	})
	select {
	case <-registered:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case <-ch:
		return get()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cookies parses every Set-Cookie header on the response. The stdlib's
// http.Cookie/http.ReadSetCookies are reused here as the data model — this
// module writes its own HTTP framing but gains nothing by reinventing
// cookie-attribute parsing, the same reasoning that keeps net/url and
// crypto/tls out of scope for reimplementation.
func (r *Response) Cookies() []*http.Cookie {
	h := make(http.Header)
	for _, v := range r.Header.Values("Set-Cookie") {
		h.Add("Set-Cookie", v)
	}
	return (&http.Response{Header: h}).Cookies()
}
