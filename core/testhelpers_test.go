package core

import "time"

// timeoutCh returns a channel that fires shortly, used to bound how long a
// test waits for an async callback before concluding it never ran.
func timeoutCh() <-chan time.Time {
	return time.After(200 * time.Millisecond)
}
