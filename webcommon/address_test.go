package webcommon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsIPLiteral(t *testing.T) {
	assert.True(t, IsIPLiteral("127.0.0.1"))
	assert.True(t, IsIPLiteral("::1"))
	assert.True(t, IsIPLiteral("[::1]"))
	assert.False(t, IsIPLiteral("example.com"))
}

func TestIsIPv6Literal(t *testing.T) {
	assert.True(t, IsIPv6Literal("::1"))
	assert.False(t, IsIPv6Literal("127.0.0.1"))
	assert.False(t, IsIPv6Literal("example.com"))
}

func TestFormatHost(t *testing.T) {
	assert.Equal(t, "example.com:80", FormatHost("example.com", 80))
	assert.Equal(t, "127.0.0.1:443", FormatHost("127.0.0.1", 443))
	assert.Equal(t, "[::1]:8080", FormatHost("::1", 8080))
	assert.Equal(t, "example.com", FormatHost("example.com", 0))
}
