package websocket

import (
	"crypto/tls"

	"github.com/HuyaneMatsu/scarletio/httpproto"
)

// clientConfig holds a Dial call's resolved configuration, grounded on the
// functional options pattern in core/options.go.
type clientConfig struct {
	header       *httpproto.Headers
	subprotocols []string
	tlsConfig    *tls.Config
}

// Option configures a Dial call.
type Option func(*clientConfig)

// WithHeader adds an extra header to the handshake request (e.g. a cookie
// or an Authorization header carried over from an HTTP session).
func WithHeader(name, value string) Option {
	return func(c *clientConfig) { c.header.Add(name, value) }
}

// WithSubprotocols requests one or more application subprotocols via
// Sec-WebSocket-Protocol, in preference order.
func WithSubprotocols(protocols ...string) Option {
	return func(c *clientConfig) { c.subprotocols = append(c.subprotocols, protocols...) }
}

// WithTLSConfig sets the *tls.Config used for wss:// connections.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *clientConfig) { c.tlsConfig = cfg }
}

func resolveOptions(opts []Option) *clientConfig {
	cfg := &clientConfig{header: httpproto.NewHeaders()}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}
