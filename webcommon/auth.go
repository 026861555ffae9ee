// Package webcommon holds small shared helpers used by both the HTTP
// client and server sides: basic-auth header encoding, keep-alive header
// parsing, and address-literal detection.
package webcommon

import (
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// ErrUsernameContainsColon is returned when a basic-auth username contains
// ':', which would make the decoded "user:pass" ambiguous (spec.md §6,
// "Username must not contain ':'").
var ErrUsernameContainsColon = errors.New("webcommon: basic auth username must not contain ':'")

// BasicAuthorization builds an "Authorization: Basic ..." header value
// (spec.md §6, "Basic authorization header"). enc controls the byte
// encoding applied to user/password before base64; nil defaults to
// latin-1 (ISO-8859-1), matching the spec's documented default.
func BasicAuthorization(user, password string, enc encoding.Encoding) (string, error) {
	if strings.Contains(user, ":") {
		return "", ErrUsernameContainsColon
	}
	if enc == nil {
		enc = charmap.ISO8859_1
	}
	raw := user + ":" + password
	encoded, err := enc.NewEncoder().String(raw)
	if err != nil {
		return "", err
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(encoded)), nil
}

// ParseBasicAuthorization decodes a "Basic ..." header value back into its
// user and password, using enc (nil defaults to latin-1).
func ParseBasicAuthorization(header string, enc encoding.Encoding) (user, password string, err error) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", errors.New("webcommon: not a Basic authorization header")
	}
	raw, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", "", err
	}
	if enc == nil {
		enc = charmap.ISO8859_1
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", "", err
	}
	idx := strings.IndexByte(string(decoded), ':')
	if idx < 0 {
		return "", "", errors.New("webcommon: malformed basic auth payload")
	}
	return string(decoded[:idx]), string(decoded[idx+1:]), nil
}
