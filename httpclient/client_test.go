package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HuyaneMatsu/scarletio/core"
)

func newTestLoop(t *testing.T) *core.Loop {
	t.Helper()
	l, err := core.NewLoop()
	require.NoError(t, err)
	t.Cleanup(l.Stop)
	go func() { _ = l.Run() }()
	return l
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClient_DoGET(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hello", r.URL.Path)
		w.Header().Set("X-Test", "yes")
		_, _ = io.WriteString(w, "hi there")
	}))
	defer srv.Close()

	c := NewClient(newTestLoop(t))
	defer c.Close()

	req, err := NewRequest(http.MethodGet, srv.URL+"/hello")
	require.NoError(t, err)

	resp, err := c.Do(testContext(t), req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	v, _ := resp.Header.Get("X-Test")
	assert.Equal(t, "yes", v)

	body, err := resp.ReadAll(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, "hi there", string(body))
}

func TestClient_DoFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "landed")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(newTestLoop(t))
	defer c.Close()

	req, err := NewRequest(http.MethodGet, srv.URL+"/start")
	require.NoError(t, err)

	resp, err := c.Do(testContext(t), req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	require.Len(t, resp.History, 1)
	assert.Equal(t, http.StatusFound, resp.History[0].StatusCode)

	body, err := resp.ReadAll(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, "landed", string(body))
}

func TestClient_CookieJarRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/set", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123", Path: "/"})
	})
	mux.HandleFunc("/check", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("session")
		if err != nil {
			http.Error(w, "missing cookie", http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, c.Value)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(newTestLoop(t))
	defer c.Close()

	setReq, err := NewRequest(http.MethodGet, srv.URL+"/set")
	require.NoError(t, err)
	_, err = c.Do(testContext(t), setReq)
	require.NoError(t, err)

	checkReq, err := NewRequest(http.MethodGet, srv.URL+"/check")
	require.NoError(t, err)
	resp, err := c.Do(testContext(t), checkReq)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, err := resp.ReadAll(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, "abc123", string(body))
}

func TestClient_DoPOSTWithBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "hello=world", string(got))
	}))
	defer srv.Close()

	c := NewClient(newTestLoop(t))
	defer c.Close()

	req, err := NewBufferedRequest(http.MethodPost, srv.URL+"/submit", []byte("hello=world"))
	require.NoError(t, err)

	resp, err := c.Do(testContext(t), req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestClient_DoTooManyRedirectsFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(newTestLoop(t))
	defer c.Close()

	req, err := NewRequest(http.MethodGet, srv.URL+"/loop")
	require.NoError(t, err)
	req.MaxRedirects = 2

	_, err = c.Do(testContext(t), req)
	assert.ErrorIs(t, err, ErrTooManyRedirects)
}

func TestClient_DoRejectsUnsupportedScheme(t *testing.T) {
	c := NewClient(newTestLoop(t))
	defer c.Close()

	req, err := NewRequest(http.MethodGet, "ftp://example.com/")
	require.NoError(t, err)

	_, err = c.Do(testContext(t), req)
	assert.Error(t, err)
}
