package httpclient

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestCookieJar_UpdateThenFilterRoundTrips(t *testing.T) {
	jar := NewCookieJar()
	u := mustParseURL(t, "http://example.com/")
	jar.UpdateCookies([]*http.Cookie{{Name: "session", Value: "abc", Path: "/"}}, u)

	got := jar.FilterCookies(u)
	require.Len(t, got, 1)
	assert.Equal(t, "session", got[0].Name)
	assert.Equal(t, "abc", got[0].Value)
}

func TestCookieJar_SecureCookieExcludedOverHTTP(t *testing.T) {
	jar := NewCookieJar()
	u := mustParseURL(t, "https://example.com/")
	jar.UpdateCookies([]*http.Cookie{{Name: "s", Value: "1", Path: "/", Secure: true}}, u)

	assert.Empty(t, jar.FilterCookies(mustParseURL(t, "http://example.com/")))
	assert.Len(t, jar.FilterCookies(mustParseURL(t, "https://example.com/")), 1)
}

func TestCookieJar_PathMustPrefixRequestPath(t *testing.T) {
	jar := NewCookieJar()
	u := mustParseURL(t, "http://example.com/account/")
	jar.UpdateCookies([]*http.Cookie{{Name: "s", Value: "1", Path: "/account"}}, u)

	assert.Len(t, jar.FilterCookies(mustParseURL(t, "http://example.com/account/profile")), 1)
	assert.Empty(t, jar.FilterCookies(mustParseURL(t, "http://example.com/other")))
}

func TestCookieJar_ExpiredCookieExcluded(t *testing.T) {
	jar := NewCookieJar()
	u := mustParseURL(t, "http://example.com/")
	jar.UpdateCookies([]*http.Cookie{{Name: "s", Value: "1", Path: "/", Expires: time.Now().Add(-time.Hour)}}, u)

	assert.Empty(t, jar.FilterCookies(u))
}

func TestCookieJar_UpdateReplacesSameNameAndPath(t *testing.T) {
	jar := NewCookieJar()
	u := mustParseURL(t, "http://example.com/")
	jar.UpdateCookies([]*http.Cookie{{Name: "s", Value: "old", Path: "/"}}, u)
	jar.UpdateCookies([]*http.Cookie{{Name: "s", Value: "new", Path: "/"}}, u)

	got := jar.FilterCookies(u)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Value)
}

func TestCookieJar_DomainAttributeAppliesToSubdomains(t *testing.T) {
	jar := NewCookieJar()
	u := mustParseURL(t, "http://www.example.com/")
	jar.UpdateCookies([]*http.Cookie{{Name: "s", Value: "1", Path: "/", Domain: "example.com"}}, u)

	assert.Len(t, jar.FilterCookies(mustParseURL(t, "http://api.example.com/")), 1)
	assert.Empty(t, jar.FilterCookies(mustParseURL(t, "http://other.com/")))
}
