package httpproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaders_AddIsCaseInsensitiveAndMultiValued(t *testing.T) {
	h := NewHeaders()
	h.Add("Set-Cookie", "a=1")
	h.Add("set-cookie", "b=2")

	v, ok := h.Get("SET-COOKIE")
	require.True(t, ok)
	assert.Equal(t, "a=1", v)
	assert.Equal(t, []string{"a=1", "b=2"}, h.Values("Set-Cookie"))
}

func TestHeaders_NamesPreservesFirstSeenOrder(t *testing.T) {
	h := NewHeaders()
	h.Add("Z", "1")
	h.Add("A", "2")
	assert.Equal(t, []string{"Z", "A"}, h.Names())
}

func TestHeaders_DelRemovesAllValues(t *testing.T) {
	h := NewHeaders()
	h.Add("X-A", "1")
	h.Add("X-B", "2")
	h.Add("x-a", "3")

	h.Del("X-A")

	_, ok := h.Get("X-A")
	assert.False(t, ok)
	assert.Equal(t, []string{"X-B"}, h.Names())
	v, ok := h.Get("X-B")
	require.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestHeaders_DelOnMissingNameIsNoOp(t *testing.T) {
	h := NewHeaders()
	h.Add("X-A", "1")
	h.Del("X-Nonexistent")
	assert.Equal(t, []string{"X-A"}, h.Names())
}

func TestHeaders_DelThenAddReindexesCorrectly(t *testing.T) {
	h := NewHeaders()
	h.Add("X-A", "1")
	h.Add("X-B", "2")
	h.Add("X-C", "3")

	h.Del("X-A")
	h.Add("X-D", "4")

	v, ok := h.Get("X-B")
	require.True(t, ok)
	assert.Equal(t, "2", v)
	v, ok = h.Get("X-C")
	require.True(t, ok)
	assert.Equal(t, "3", v)
	v, ok = h.Get("X-D")
	require.True(t, ok)
	assert.Equal(t, "4", v)
}

func TestParseHeaderBlock_FoldsContinuations(t *testing.T) {
	lines := []string{"X-A: one", " two", "\tthree", "X-B: four"}
	h, err := parseHeaderBlock(lines)
	require.NoError(t, err)

	v, ok := h.Get("X-A")
	require.True(t, ok)
	assert.Equal(t, "one two three", v)
}

func TestParseHeaderBlock_ContinuationWithoutPrecedingHeaderFails(t *testing.T) {
	_, err := parseHeaderBlock([]string{" orphaned"})
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestParseHeaderBlock_MissingColonFails(t *testing.T) {
	_, err := parseHeaderBlock([]string{"not-a-header"})
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestParseRequestLine(t *testing.T) {
	rl, err := parseRequestLine("GET /foo HTTP/1.1")
	require.NoError(t, err)
	assert.Equal(t, RequestLine{Method: "GET", Target: "/foo", Version: "HTTP/1.1"}, rl)
}

func TestParseRequestLine_MalformedFails(t *testing.T) {
	_, err := parseRequestLine("garbage")
	assert.ErrorIs(t, err, ErrMalformedStartLine)
}

func TestParseStatusLine(t *testing.T) {
	sl, err := parseStatusLine("HTTP/1.1 404 Not Found")
	require.NoError(t, err)
	assert.Equal(t, StatusLine{Version: "HTTP/1.1", Code: 404, Reason: "Not Found"}, sl)
}

func TestParseStatusLine_MissingReasonIsOptional(t *testing.T) {
	sl, err := parseStatusLine("HTTP/1.1 204")
	require.NoError(t, err)
	assert.Equal(t, 204, sl.Code)
	assert.Equal(t, "", sl.Reason)
}

func TestParseStatusLine_MalformedFails(t *testing.T) {
	_, err := parseStatusLine("not a status line")
	assert.ErrorIs(t, err, ErrMalformedStartLine)
}
