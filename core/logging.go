package core

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger type used throughout this module. It is a
// type alias over logiface's generic Logger, bound to stumpy's concrete
// Event type, grounded on eventloop/logging.go's use of logiface as the
// loop's diagnostic sink.
type Logger = *logiface.Logger[*stumpy.Event]

// defaultLogger returns a stumpy-backed logiface logger writing to os.Stderr.
// It is used when a Loop is constructed without an explicit WithLogger
// option, so the loop never falls back to bare fmt/log calls for its
// ambient diagnostics (handle panics, poll errors, listener back-off).
func defaultLogger() Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(),
	)
}

// logHandlePanic renders a recovered handle panic to the loop's logger, the
// Go realization of spec.md §4.1's "Handle exceptions are caught, rendered,
// and logged; they never stop the loop."
func (l *Loop) logHandlePanic(err *PanicError) {
	l.logger.Err().
		Str(`component`, `handle`).
		Err(err).
		Log(`callback panicked`)
}

// logUnretrievedException renders a future's never-observed exception at
// collection time (spec.md §3, "a future carrying an exception that is never
// observed logs at destruction unless silenced").
func (l *Loop) logUnretrievedException(name string, err error) {
	l.logger.Err().
		Str(`component`, `future`).
		Str(`name`, name).
		Err(err).
		Log(`exception was never retrieved`)
}

// logPollError renders a non-backoff-eligible selector error.
func (l *Loop) logPollError(err error) {
	l.logger.Err().
		Str(`component`, `selector`).
		Err(err).
		Log(`poll failed`)
}

// logAcceptBackoff renders a listener back-off decision (spec.md §4.1,
// "Failure semantics").
func (l *Loop) logAcceptBackoff(fd int, err error) {
	l.logger.Notice().
		Str(`component`, `selector`).
		Int(`fd`, fd).
		Err(err).
		Log(`listener resource exhaustion, backing off`)
}
