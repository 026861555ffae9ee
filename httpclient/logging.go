package httpclient

import (
	"github.com/joeycumines/stumpy"

	"github.com/HuyaneMatsu/scarletio/core"
)

// defaultLogger returns a stumpy-backed logiface logger writing to
// os.Stderr, used when a Client is constructed without WithLogger, mirroring
// core/logging.go's defaultLogger so the client never falls back to bare
// fmt/log calls for its ambient diagnostics.
func defaultLogger() core.Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(),
	)
}
