package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubprocessProtocol struct {
	BaseSubprocessProtocol
	exited chan int
}

func (p *recordingSubprocessProtocol) ProcessExited(code int) {
	p.exited <- code
}

func TestSpawn_ProcessExitedFiresWithExitCode(t *testing.T) {
	l := newTestLoop(t)
	proto := &recordingSubprocessProtocol{exited: make(chan int, 1)}

	var proc *Process
	var spawnErr error
	ready := make(chan struct{})
	l.CallSoonThreadSafe(func() {
		proc, spawnErr = Spawn(l, "true", SubprocessOptions{}, proto)
		close(ready)
	})
	<-ready
	require.NoError(t, spawnErr)
	require.NotNil(t, proc)

	select {
	case code := <-proto.exited:
		assert.Equal(t, 0, code)
	case <-time.After(2 * time.Second):
		t.Fatal("ProcessExited never fired")
	}
	assert.True(t, proc.Exited())
}

func TestSpawn_NonZeroExitCodeIsReported(t *testing.T) {
	l := newTestLoop(t)
	proto := &recordingSubprocessProtocol{exited: make(chan int, 1)}

	ready := make(chan struct{})
	l.CallSoonThreadSafe(func() {
		_, err := Spawn(l, "false", SubprocessOptions{}, proto)
		require.NoError(t, err)
		close(ready)
	})
	<-ready

	select {
	case code := <-proto.exited:
		assert.Equal(t, 1, code)
	case <-time.After(2 * time.Second):
		t.Fatal("ProcessExited never fired")
	}
}

func TestSpawn_ExposesStdioFds(t *testing.T) {
	l := newTestLoop(t)
	proto := &recordingSubprocessProtocol{exited: make(chan int, 1)}

	var proc *Process
	ready := make(chan struct{})
	l.CallSoonThreadSafe(func() {
		var err error
		proc, err = Spawn(l, "true", SubprocessOptions{}, proto)
		require.NoError(t, err)
		close(ready)
	})
	<-ready

	assert.Greater(t, proc.StdinFd(), -1)
	assert.Greater(t, proc.StdoutFd(), -1)
	assert.Greater(t, proc.StderrFd(), -1)
	assert.Greater(t, proc.Pid(), 0)

	<-proto.exited
}
