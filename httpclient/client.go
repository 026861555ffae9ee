package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/HuyaneMatsu/scarletio/core"
	"github.com/HuyaneMatsu/scarletio/httpproto"
	"github.com/HuyaneMatsu/scarletio/transport"
	"github.com/HuyaneMatsu/scarletio/webcommon"
)

// ErrTooManyRedirects is returned once a redirect chain exhausts its
// budget, grounded on http_client.py's `_request`/`_request2` raising
// `ConnectionError('Too many redirects', ...)`.
var ErrTooManyRedirects = errors.New("httpclient: too many redirects")

// Client is an HTTP/1.1 client: a keep-alive Connector, a CookieJar shared
// across every request, and the redirect-following Do loop that folds
// http_client.py's HTTPClient._request/_request2 into one entrypoint
// (SPEC_FULL.md Open Question resolution #2).
type Client struct {
	loop      *core.Loop
	connector *Connector
	Jar       *CookieJar
	cfg       *clientConfig
}

// NewClient constructs a Client bound to loop.
func NewClient(loop *core.Loop, opts ...Option) *Client {
	return &Client{
		loop:      loop,
		connector: NewConnector(loop),
		Jar:       NewCookieJar(),
		cfg:       resolveClientOptions(opts),
	}
}

// Close closes every pooled connection and stops the connector's sweeper.
func (c *Client) Close() { c.connector.Close() }

// Do executes req, following redirects per its (or the Client's default)
// MaxRedirects budget, and returns the final hop's Response. The request is
// driven by a task on the Client's loop; Do itself may be called from any
// goroutine and blocks until the response headers are available or ctx is
// done.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return nil, fmt.Errorf("httpclient: unsupported scheme %q", req.URL.Scheme)
	}

	type outcome struct {
		resp *Response
		err  error
	}
	done := make(chan outcome, 1)
	ready := make(chan struct{})
	var task *core.Task[*Response]

	c.loop.CallSoonThreadSafe(func() {
		task = core.CreateTask(c.loop, func(y *core.Yielder) (*Response, error) {
			return c.doRedirectLoop(y, req)
		})
		task.Future().AddDoneCallback(func(f *core.Future[*Response]) {
			resp, err := f.Result()
			done <- outcome{resp, err}
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
		return o.resp, o.err
	case <-ctx.Done():
		c.loop.CallSoonThreadSafe(func() { task.Cancel(ctx.Err()) })
		o := <-done
		return o.resp, o.err
	}
}

// doRedirectLoop runs entirely on the loop thread (it's a Coroutine body):
// it performs one hop at a time via doHop, following 301/302/303/307
// redirects per the exact budget accounting in http_client.py's
// `_request`/`_request2` (redirects is consumed one per eligible response,
// and hitting zero after a decrement is "too many redirects" rather than
// letting that last hop through).
func (c *Client) doRedirectLoop(y *core.Yielder, req *Request) (*Response, error) {
	current := req
	redirectsLeft := req.maxRedirects()
	if req.MaxRedirects == 0 {
		redirectsLeft = c.cfg.maxRedirects
	}
	var history []*Response

	for {
		resp, err := c.doHop(y, current)
		if err != nil {
			return nil, err
		}

		if !isRedirectStatus(resp.StatusCode) || redirectsLeft <= 0 {
			resp.History = history
			return resp, nil
		}

		redirectsLeft--
		history = append(history, resp)
		if redirectsLeft == 0 {
			return nil, ErrTooManyRedirects
		}

		next := current.clone()
		if (resp.StatusCode == 303 && current.Method != "HEAD") ||
			((resp.StatusCode == 301 || resp.StatusCode == 302) && current.Method == "POST") {
			next.Method = "GET"
			next.Body = nil
			next.BodyMode = httpproto.BodyModeEmpty
			next.Header.Del("Content-Length")
		}

		location, ok := resp.Header.Get("Location")
		if !ok {
			location, ok = resp.Header.Get("URI")
		}
		if !ok {
			resp.History = history
			return resp, nil
		}

		redirectURL, err := url.Parse(location)
		if err != nil {
			resp.History = history
			return resp, nil
		}
		if redirectURL.Scheme == "" {
			redirectURL = current.URL.ResolveReference(redirectURL)
		} else if redirectURL.Scheme != "http" && redirectURL.Scheme != "https" {
			return nil, fmt.Errorf("httpclient: can only redirect to http or https, got %q", redirectURL.Scheme)
		}
		if redirectURL.Host != current.URL.Host {
			next.Header.Del("Authorization")
		}
		next.URL = redirectURL

		current = next
	}
}

func isRedirectStatus(code int) bool {
	return code == 301 || code == 302 || code == 303 || code == 307
}

// doHop sends one request and waits for the response headers, reusing a
// pooled connection where possible. It must run on the loop thread (it
// Awaits futures via y).
func (c *Client) doHop(y *core.Yielder, req *Request) (*Response, error) {
	host := req.URL.Hostname()
	port := portFor(req.URL)
	key := connectionKey{host: host, port: port, tls: req.URL.Scheme == "https"}

	if c.cfg.proxy != nil && req.URL.Scheme == "http" {
		key = connectionKey{host: c.cfg.proxy.Hostname(), port: portFor(c.cfg.proxy), tls: false}
	}

	pc, err := c.connector.AcquireOrDial(y, key, c.cfg.tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("httpclient: dial %s: %w", key, err)
	}

	requestID := uuid.NewString()
	c.cfg.logger.Info().Str(`component`, `httpclient`).Str(`request_id`, requestID).
		Str(`method`, req.Method).Str(`url`, req.URL.String()).Log(`sending request`)

	if err := c.writeRequest(pc, req, host, port); err != nil {
		writerFor(pc).Abort()
		return nil, err
	}

	msgFut := httpproto.ReadHTTPResponse(c.loop, pc.proto.raw)
	msg, err := core.Await(y, msgFut)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		StatusCode: msg.Response.Code,
		Status:     msg.Response.Reason,
		Header:     msg.Headers,
		Body:       msg.Body,
		Request:    req,
		loop:       c.loop,
	}

	c.Jar.UpdateCookies(resp.Cookies(), req.URL)

	// Defer returning the connection to the pool until the body has been
	// fully delivered: raw (pc.proto.raw) is the whole connection's byte
	// stream, and a second message can't safely start reading it while this
	// message's body read is still in flight (PayloadStream allows only one
	// outstanding reader).
	resp.Body.OnComplete(func() { c.recycleConnection(key, pc, resp) })

	return resp, nil
}

// writeRequest serializes req onto pc's connection, adding the Host header,
// any cookies the jar has for req.URL, and framing headers for req's body.
func (c *Client) writeRequest(pc *pooledConn, req *Request, host string, port int) error {
	header := copyHeaders(req.Header)

	if _, ok := header.Get("Host"); !ok {
		hostPort := 0
		if (req.URL.Scheme == "https" && port != 443) || (req.URL.Scheme != "https" && port != 80) {
			hostPort = port
		}
		header.Add("Host", webcommon.FormatHost(host, hostPort))
	}

	if cookies := c.Jar.FilterCookies(req.URL); len(cookies) > 0 {
		header.Add("Cookie", cookieHeaderValue(cookies))
	}

	body := req.Body
	mode := req.BodyMode
	if body == nil {
		body = httpproto.BufferedBodyProducer(nil)
		mode = httpproto.BodyModeEmpty
	}
	producer, err := httpproto.NewBodyProducer(body, req.Compress)
	if err != nil {
		return err
	}
	if req.Compress != "" {
		header.Add("Content-Encoding", req.Compress)
	}
	if mode == httpproto.BodyModeChunked {
		if _, ok := header.Get("Transfer-Encoding"); !ok {
			header.Add("Transfer-Encoding", "chunked")
		}
	}

	target := req.URL.RequestURI()
	if c.cfg.proxy != nil && req.URL.Scheme == "http" {
		target = req.URL.String()
	}

	var buf bytes.Buffer
	if err := httpproto.WriteRequestLine(&buf, req.Method, target, "HTTP/1.1"); err != nil {
		return err
	}
	if err := httpproto.WriteHeaders(&buf, header, false); err != nil {
		return err
	}
	if err := httpproto.WriteBody(&buf, producer, httpproto.WriteOptions{Mode: mode}); err != nil {
		return err
	}

	writerFor(pc).Write(buf.Bytes())
	return nil
}

// recycleConnection returns pc to the connector's pool, or closes it,
// depending on the response's Connection/Keep-Alive headers.
func (c *Client) recycleConnection(key connectionKey, pc *pooledConn, resp *Response) {
	if conn, ok := resp.Header.Get("Connection"); ok && strings.EqualFold(strings.TrimSpace(conn), "close") {
		pc.stream.Close()
		return
	}
	info := webcommon.KeepAliveInfo{TimeoutSeconds: webcommon.DefaultKeepAliveTimeoutSeconds, Max: webcommon.DefaultKeepAliveMax}
	if ka, ok := resp.Header.Get("Keep-Alive"); ok {
		info = webcommon.ParseKeepAlive(ka)
	}
	c.connector.release(key, pc, info)
}

// writerFor returns the Transport that outbound bytes for pc should be
// written to: the TLS layer if this is an https connection, otherwise the
// raw stream.
func writerFor(pc *pooledConn) transport.Transport {
	if pc.ssl != nil {
		return pc.ssl
	}
	return pc.stream
}

func portFor(u *url.URL) int {
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}
