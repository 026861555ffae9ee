package httpproto

import (
	"bytes"
	"compress/gzip"
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

func waitMessage(t *testing.T, fut *core.Future[*Message]) *Message {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !fut.Done() {
		if time.Now().After(deadline) {
			t.Fatal("message never parsed")
		}
		time.Sleep(time.Millisecond)
	}
	msg, err := fut.Result()
	require.NoError(t, err)
	return msg
}

func waitBodyComplete(t *testing.T, body *PayloadStream) ([]byte, error) {
	t.Helper()
	ch, get := body.ReadToEnd()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("body never completed")
	}
	return get()
}

// TestReadHTTPRequest_ParsesStartLineAndHeaders exercises the request path
// of spec.md §4.7's "Request/response parser."
func TestReadHTTPRequest_ParsesStartLineAndHeaders(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)
	fut := ReadHTTPRequest(l, raw)

	raw.AddReceivedChunk([]byte("GET /path HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n"))
	raw.Complete(nil)

	msg := waitMessage(t, fut)
	require.NotNil(t, msg.Request)
	assert.Equal(t, "GET", msg.Request.Method)
	assert.Equal(t, "/path", msg.Request.Target)
	host, ok := msg.Headers.Get("Host")
	assert.True(t, ok)
	assert.Equal(t, "example.com", host)

	body, err := waitBodyComplete(t, msg.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

// TestReadHTTPRequest_FoldsContinuationHeaders covers spec.md §4.7's
// "Multi-line header continuations... fold into the preceding value with a
// single space."
func TestReadHTTPRequest_FoldsContinuationHeaders(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)
	fut := ReadHTTPRequest(l, raw)

	raw.AddReceivedChunk([]byte("GET / HTTP/1.1\r\nX-Long: part-one\r\n part-two\r\nConnection: close\r\n\r\n"))
	raw.Complete(nil)

	msg := waitMessage(t, fut)
	v, ok := msg.Headers.Get("X-Long")
	require.True(t, ok)
	assert.Equal(t, "part-one part-two", v)
}

func TestReadHTTPRequest_MalformedStartLineFails(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)
	fut := ReadHTTPRequest(l, raw)

	raw.AddReceivedChunk([]byte("not a request line\r\n\r\n"))
	raw.Complete(nil)

	deadline := time.Now().Add(time.Second)
	for !fut.Done() {
		if time.Now().After(deadline) {
			t.Fatal("never completed")
		}
		time.Sleep(time.Millisecond)
	}
	_, err := fut.Result()
	assert.ErrorIs(t, err, ErrMalformedStartLine)
}

// TestChunkedDecode is spec.md §8's literal scenario 1.
func TestChunkedDecode(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)
	fut := ReadHTTPResponse(l, raw)

	raw.AddReceivedChunk([]byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n"))
	raw.AddReceivedChunk([]byte("5\r\nhey m\r\n5\r\nister\r\n0\r\n\r\n"))
	raw.Complete(nil)

	msg := waitMessage(t, fut)
	body, err := waitBodyComplete(t, msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "hey mister", string(body))
}

// TestGzipChunkedDecode is spec.md §8's literal scenario 2.
func TestGzipChunkedDecode(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)
	fut := ReadHTTPResponse(l, raw)

	var gzipped bytes.Buffer
	gw := gzip.NewWriter(&gzipped)
	_, err := gw.Write([]byte("hey mister"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	chunk := gzipped.Bytes()
	var framed bytes.Buffer
	framed.WriteString(hexLen(len(chunk)) + "\r\n")
	framed.Write(chunk)
	framed.WriteString("\r\n0\r\n\r\n")

	raw.AddReceivedChunk([]byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\nContent-Encoding: gzip\r\n\r\n"))
	raw.AddReceivedChunk(framed.Bytes())
	raw.Complete(nil)

	msg := waitMessage(t, fut)
	body, err := waitBodyComplete(t, msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "hey mister", string(body))
}

func hexLen(n int) string {
	const digits = "0123456789abcdef"
	if n == 0 {
		return "0"
	}
	var out []byte
	for n > 0 {
		out = append([]byte{digits[n%16]}, out...)
		n /= 16
	}
	return string(out)
}

func TestReadHTTPResponse_ContentLengthBody(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)
	fut := ReadHTTPResponse(l, raw)

	raw.AddReceivedChunk([]byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"))
	raw.Complete(nil)

	msg := waitMessage(t, fut)
	body, err := waitBodyComplete(t, msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestReadHTTPResponse_ReadUntilCloseBody(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)
	fut := ReadHTTPResponse(l, raw)

	raw.AddReceivedChunk([]byte("HTTP/1.1 200 OK\r\nConnection: close\r\n\r\nwhatever remains"))
	raw.Complete(nil)

	msg := waitMessage(t, fut)
	body, err := waitBodyComplete(t, msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "whatever remains", string(body))
}

func TestReadHTTPResponse_ZeroSizeChunkTerminatesWithoutTrailer(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)
	fut := ReadHTTPResponse(l, raw)

	raw.AddReceivedChunk([]byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n0\r\n\r\n"))
	raw.Complete(nil)

	msg := waitMessage(t, fut)
	body, err := waitBodyComplete(t, msg.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestReadHTTPResponse_UnsupportedEncodingFails(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)
	fut := ReadHTTPResponse(l, raw)

	raw.AddReceivedChunk([]byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\nContent-Encoding: br\r\n\r\nhello"))
	raw.Complete(nil)

	msg := waitMessage(t, fut)
	_, err := waitBodyComplete(t, msg.Body)
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)
}
