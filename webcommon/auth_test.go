package webcommon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBasicAuthorization_LiteralExample covers spec.md §8's literal
// scenario 6: BasicAuthorization("orin", "fish").to_header() == "Basic
// b3JpbjpmaXNo".
func TestBasicAuthorization_LiteralExample(t *testing.T) {
	header, err := BasicAuthorization("orin", "fish", nil)
	require.NoError(t, err)
	assert.Equal(t, "Basic b3JpbjpmaXNo", header)
}

func TestBasicAuthorization_RoundTrip(t *testing.T) {
	header, err := BasicAuthorization("orin", "fish", nil)
	require.NoError(t, err)

	user, password, err := ParseBasicAuthorization(header, nil)
	require.NoError(t, err)
	assert.Equal(t, "orin", user)
	assert.Equal(t, "fish", password)
}

func TestBasicAuthorization_RejectsColonInUsername(t *testing.T) {
	_, err := BasicAuthorization("or:in", "fish", nil)
	assert.ErrorIs(t, err, ErrUsernameContainsColon)
}

func TestBasicAuthorization_PasswordMayContainColon(t *testing.T) {
	header, err := BasicAuthorization("orin", "fi:sh", nil)
	require.NoError(t, err)

	user, password, err := ParseBasicAuthorization(header, nil)
	require.NoError(t, err)
	assert.Equal(t, "orin", user)
	assert.Equal(t, "fi:sh", password)
}

func TestParseBasicAuthorization_RejectsNonBasicHeader(t *testing.T) {
	_, _, err := ParseBasicAuthorization("Bearer abc", nil)
	assert.Error(t, err)
}
