package core

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHandle_CancelIsIdempotentAndSkipsRun(t *testing.T) {
	ran := false
	h := &Handle{fn: func() { ran = true }}
	assert.False(t, h.Cancelled())
	h.Cancel()
	h.Cancel()
	assert.True(t, h.Cancelled())
	h.run()
	assert.False(t, ran)
}

func TestHandle_RunIsNoOpAfterCancel(t *testing.T) {
	ran := false
	h := &Handle{fn: func() { ran = true }}
	h.Cancel()
	h.run()
	assert.False(t, ran)
}

type weakOwner struct{ v int }

func TestCallLaterWeak_FiresWhileOwnerLive(t *testing.T) {
	l := newTestLoop(t)
	owner := &weakOwner{v: 1}
	fired := make(chan int, 1)

	CallLaterWeak(l, time.Millisecond, owner, func(o *weakOwner) {
		fired <- o.v
	})

	select {
	case v := <-fired:
		assert.Equal(t, 1, v)
	case <-time.After(time.Second):
		t.Fatal("weak timer never fired")
	}
	runtime.KeepAlive(owner)
}

func TestCallLaterWeak_CancelsWhenOwnerCollected(t *testing.T) {
	l := newTestLoop(t)
	owner := &weakOwner{v: 2}
	h := CallLaterWeak(l, time.Hour, owner, func(o *weakOwner) {})
	owner = nil
	runtime.GC()
	runtime.GC()

	assert.True(t, h.Cancelled(), "handle should report cancelled once its weak owner is collected")
}
