package httpclient

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// CookieJar stores cookies across requests, grounded on http_client.py's
// HTTPClient.cookie_jar: Client.Do filters outgoing cookies by the request
// URL before each hop (cookie_jar.filter_cookies(url)), then folds in
// whatever the response's Set-Cookie headers carried
// (cookie_jar.update_cookies(response.cookies, response.url)). Cookie
// representation reuses the stdlib's http.Cookie rather than reimplementing
// Set-Cookie attribute parsing, the same reasoning that keeps net/url and
// crypto/tls out of scope for reimplementation.
type CookieJar struct {
	mu       sync.Mutex
	byDomain map[string][]*http.Cookie
}

// NewCookieJar returns an empty jar.
func NewCookieJar() *CookieJar {
	return &CookieJar{byDomain: make(map[string][]*http.Cookie)}
}

// FilterCookies returns the jar's cookies applicable to u: matching domain,
// a path that is a prefix of u.Path, Secure only over https, and not past
// its Expires.
func (j *CookieJar) FilterCookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	host := hostKey(u.Hostname())
	now := time.Now()
	var out []*http.Cookie
	for domain, cookies := range j.byDomain {
		if !domainMatches(host, domain) {
			continue
		}
		for _, c := range cookies {
			if c.Secure && u.Scheme != "https" {
				continue
			}
			if !pathMatches(u.Path, c.Path) {
				continue
			}
			if !c.Expires.IsZero() && c.Expires.Before(now) {
				continue
			}
			out = append(out, c)
		}
	}
	return out
}

// UpdateCookies stores every cookie in cookies, keyed by its own Domain
// attribute if present, otherwise by u's host. A cookie replaces any
// existing one with the same name and path under that key.
func (j *CookieJar) UpdateCookies(cookies []*http.Cookie, u *url.URL) {
	if len(cookies) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, c := range cookies {
		domain := hostKey(u.Hostname())
		if c.Domain != "" {
			domain = hostKey(c.Domain)
		}
		path := c.Path
		if path == "" {
			path = "/"
		}

		existing := j.byDomain[domain]
		replaced := false
		for i, e := range existing {
			ePath := e.Path
			if ePath == "" {
				ePath = "/"
			}
			if e.Name == c.Name && ePath == path {
				existing[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, c)
		}
		j.byDomain[domain] = existing
	}
}

// cookieHeaderValue renders cookies as a single "Cookie: " header value.
func cookieHeaderValue(cookies []*http.Cookie) string {
	parts := make([]string, len(cookies))
	for i, c := range cookies {
		parts[i] = c.Name + "=" + c.Value
	}
	return strings.Join(parts, "; ")
}

func hostKey(host string) string {
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

func domainMatches(host, domain string) bool {
	if host == domain {
		return true
	}
	return strings.HasSuffix(host, "."+domain)
}

func pathMatches(reqPath, cookiePath string) bool {
	if cookiePath == "" || cookiePath == "/" {
		return true
	}
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	return len(reqPath) == len(cookiePath) || reqPath[len(cookiePath)] == '/'
}
