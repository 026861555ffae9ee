package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTimeoutScope_ExpiryRewritesCancellationToTimeout covers spec.md §8's
// literal scenario 4: a task awaiting a never-completing future inside a
// short timeout scope observes *TimeoutError, not a raw *CancelledError, at
// the scope's exit.
func TestTimeoutScope_ExpiryRewritesCancellationToTimeout(t *testing.T) {
	l := newTestLoop(t)
	never := CreateFuture[int](l)

	type outcome struct {
		err error
	}
	results := make(chan outcome, 1)

	l.CallSoonThreadSafe(func() {
		task := CreateTask(l, func(y *Yielder) (int, error) {
			return Await(y, never)
		})
		scope := NewTimeoutScope(l, task, time.Millisecond)
		AddFuture(NewTaskGroup(l), task.Future()) // no-op, exercises futurer conformance
		task.Future().AddDoneCallback(func(f *Future[int]) {
			_, err := f.Result()
			results <- outcome{err: scope.Exit(err)}
		})
	})

	select {
	case res := <-results:
		var te *TimeoutError
		assert.True(t, errors.As(res.err, &te), "expected *TimeoutError, got %T: %v", res.err, res.err)
		var ce *CancelledError
		assert.False(t, errors.As(res.err, &ce) && te == nil)
	case <-time.After(time.Second):
		t.Fatal("timeout scope never fired")
	}
}

func TestTimeoutScope_ExitWithoutExpiryPassesErrorThrough(t *testing.T) {
	l := newTestLoop(t)
	task := CreateTask(l, func(y *Yielder) (int, error) {
		return 1, nil
	})
	scope := NewTimeoutScope(l, task, time.Hour)

	waitTaskDone(t, task)
	_, taskErr := task.Result()
	got := scope.Exit(taskErr)
	require.NoError(t, got)
}

func TestTimeoutScope_ExitIsIdempotent(t *testing.T) {
	l := newTestLoop(t)
	task := CreateTask(l, func(y *Yielder) (int, error) {
		return 1, nil
	})
	scope := NewTimeoutScope(l, task, time.Hour)
	_ = scope.Exit(nil)
	// second Exit after the state machine already left "none" must not
	// panic or re-enter the timeout branch.
	got := scope.Exit(errors.New("unrelated"))
	assert.EqualError(t, got, "unrelated")
}
