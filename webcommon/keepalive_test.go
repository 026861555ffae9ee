package webcommon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestParseKeepAlive_LiteralExamples covers spec.md §8's literal scenario
// 7: both orderings of "max"/"timeout" parse identically, and an unknown
// key falls back to defaults.
func TestParseKeepAlive_LiteralExamples(t *testing.T) {
	a := ParseKeepAlive("max=1000, timeout=5")
	b := ParseKeepAlive("timeout=5, max=1000")
	assert.Equal(t, KeepAliveInfo{TimeoutSeconds: 5, Max: 1000}, a)
	assert.Equal(t, a, b)

	fallback := ParseKeepAlive("nyan=13")
	assert.Equal(t, KeepAliveInfo{TimeoutSeconds: DefaultKeepAliveTimeoutSeconds, Max: DefaultKeepAliveMax}, fallback)
}

func TestParseKeepAlive_CaseInsensitiveKeys(t *testing.T) {
	got := ParseKeepAlive("TIMEOUT=10, MAX=20")
	assert.Equal(t, KeepAliveInfo{TimeoutSeconds: 10, Max: 20}, got)
}

func TestParseKeepAlive_UnparseableFieldFallsBackToDefault(t *testing.T) {
	got := ParseKeepAlive("timeout=notanumber, max=5")
	assert.Equal(t, DefaultKeepAliveTimeoutSeconds, got.TimeoutSeconds)
	assert.Equal(t, 5, got.Max)
}

func TestKeepAliveInfo_StringRoundTrip(t *testing.T) {
	info := KeepAliveInfo{TimeoutSeconds: 5, Max: 1000}
	got := ParseKeepAlive(info.String())
	assert.Equal(t, info, got)
}

func TestParseKeepAlive_EmptyHeaderUsesDefaults(t *testing.T) {
	got := ParseKeepAlive("")
	assert.Equal(t, KeepAliveInfo{TimeoutSeconds: DefaultKeepAliveTimeoutSeconds, Max: DefaultKeepAliveMax}, got)
}
