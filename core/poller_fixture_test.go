//go:build linux || darwin

package core

import (
	"os"
	"testing"
)

// newUnixSocketPair returns a connected pipe for readiness tests: r's read
// end is what gets registered with the loop's poller, w is written to from
// the test goroutine to make r readable. Named for parity with the
// transport package's socket-pair based fixtures even though a pipe
// suffices here — core has no socket-dialing helpers of its own.
func newUnixSocketPair() (r, w *os.File, err error) {
	r, w, err = os.Pipe()
	return
}

func mustSocketFd(t *testing.T, f *os.File) int {
	t.Helper()
	return int(f.Fd())
}
