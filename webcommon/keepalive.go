package webcommon

import (
	"strconv"
	"strings"
)

// Defaults for a missing or unparseable Keep-Alive header (spec.md §6,
// "Missing or unparseable fields fall back to defaults (timeout 15 s, max 0
// meaning unbounded)").
const (
	DefaultKeepAliveTimeoutSeconds = 15
	DefaultKeepAliveMax            = 0
)

// KeepAliveInfo is a parsed Keep-Alive header value (spec.md §6,
// "Keep-alive header value").
type KeepAliveInfo struct {
	TimeoutSeconds int
	Max            int // 0 means unbounded
}

// ParseKeepAlive parses a "timeout=<n>, max=<n>" header value,
// case-insensitive on keys, tolerant of extra whitespace, falling back to
// defaults for any field that is missing or fails to parse.
func ParseKeepAlive(header string) KeepAliveInfo {
	info := KeepAliveInfo{TimeoutSeconds: DefaultKeepAliveTimeoutSeconds, Max: DefaultKeepAliveMax}
	for _, field := range strings.Split(header, ",") {
		field = strings.TrimSpace(field)
		eq := strings.IndexByte(field, '=')
		if eq < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(field[:eq]))
		value := strings.TrimSpace(field[eq+1:])
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch key {
		case "timeout":
			info.TimeoutSeconds = n
		case "max":
			info.Max = n
		}
	}
	return info
}

// String serializes back to the "timeout=<n>, max=<n>" wire form.
func (k KeepAliveInfo) String() string {
	return "timeout=" + strconv.Itoa(k.TimeoutSeconds) + ", max=" + strconv.Itoa(k.Max)
}
