package httpclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest_ParsesURLAndInitializesHeaders(t *testing.T) {
	req, err := NewRequest("GET", "http://example.com/path?q=1")
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "example.com", req.URL.Host)
	assert.Equal(t, "/path", req.URL.Path)
	assert.NotNil(t, req.Header)
}

func TestNewRequest_InvalidURLFails(t *testing.T) {
	_, err := NewRequest("GET", "http://[::1")
	assert.Error(t, err)
}

func TestNewBufferedRequest_SetsContentLength(t *testing.T) {
	req, err := NewBufferedRequest("POST", "http://example.com/", []byte("hello"))
	require.NoError(t, err)
	v, ok := req.Header.Get("Content-Length")
	require.True(t, ok)
	assert.Equal(t, "5", v)
}

func TestRequest_MaxRedirectsDefaultsWhenUnset(t *testing.T) {
	req, err := NewRequest("GET", "http://example.com/")
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRedirects, req.maxRedirects())

	req.MaxRedirects = 7
	assert.Equal(t, 7, req.maxRedirects())
}

func TestRequest_CloneCopiesURLAndHeaderIndependently(t *testing.T) {
	req, err := NewRequest("GET", "http://example.com/a")
	require.NoError(t, err)
	req.Header.Add("X-Original", "1")

	clone := req.clone()
	clone.URL.Path = "/b"
	clone.Header.Add("X-Clone", "2")

	assert.Equal(t, "/a", req.URL.Path)
	_, ok := req.Header.Get("X-Clone")
	assert.False(t, ok)
	_, ok = clone.Header.Get("X-Original")
	assert.True(t, ok)
}
