package httpclient

import (
	"crypto/tls"
	"net/url"

	"github.com/HuyaneMatsu/scarletio/core"
)

// clientConfig holds a Client's resolved configuration (SPEC_FULL.md Open
// Question resolution #2: "explicit Config (redirect policy, TLS policy,
// proxy)").
type clientConfig struct {
	tlsConfig    *tls.Config
	maxRedirects int
	proxy        *url.URL
	logger       core.Logger
}

// Option configures a Client at construction time, grounded on the
// functional options pattern in core/options.go.
type Option func(*clientConfig)

// WithTLSConfig sets the *tls.Config used for https:// connections. If
// omitted, transport.WrapClient's own default (ServerName set from the
// dialed host) applies.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *clientConfig) { c.tlsConfig = cfg }
}

// WithMaxRedirects sets the default redirect budget for requests that don't
// set Request.MaxRedirects themselves.
func WithMaxRedirects(n int) Option {
	return func(c *clientConfig) { c.maxRedirects = n }
}

// WithProxy routes plain http:// requests (not https://) through proxyURL,
// rewriting the request line to absolute-form and dialing the proxy's host
// instead of the request's origin — grounded on http_client.py's `proxy`
// attribute. CONNECT tunneling for https:// through a proxy is not
// implemented.
func WithProxy(proxyURL *url.URL) Option {
	return func(c *clientConfig) { c.proxy = proxyURL }
}

// WithLogger sets the structured logger the client uses for its ambient
// diagnostics (one entry per request hop sent, with method, URL and a
// request id). Defaults to a stumpy-backed logger writing to stderr.
func WithLogger(logger core.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}

func resolveClientOptions(opts []Option) *clientConfig {
	cfg := &clientConfig{maxRedirects: DefaultMaxRedirects}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = defaultLogger()
	}
	return cfg
}
