package core

import (
	"os"
	"os/exec"
	"syscall"
)

// SubprocessProtocol receives a spawned child process's lifecycle events
// and output, the subprocess analogue of a stream Protocol (spec.md §1,
// "subprocess control"). Implementations must not block.
type SubprocessProtocol interface {
	// ProcessStarted is called once the child has been spawned and its
	// pipes are wired up.
	ProcessStarted(p *Process)
	// PipeDataReceived receives a chunk read from the given file descriptor
	// number (1 for stdout, 2 for stderr). Process does not read the pipes
	// and never calls it.
	PipeDataReceived(fd int, data []byte)
	// PipeConnectionLost receives the closing of a child pipe. Process
	// never calls it.
	PipeConnectionLost(fd int, err error)
	// ProcessExited is called once the child has terminated, with its exit
	// code.
	ProcessExited(exitCode int)
}

// BaseSubprocessProtocol gives an embedding SubprocessProtocol no-op
// defaults for every method.
type BaseSubprocessProtocol struct{}

func (BaseSubprocessProtocol) ProcessStarted(*Process)       {}
func (BaseSubprocessProtocol) PipeDataReceived(int, []byte)  {}
func (BaseSubprocessProtocol) PipeConnectionLost(int, error) {}
func (BaseSubprocessProtocol) ProcessExited(int)             {}

// Process controls a spawned child, exposing its stdin write end and its
// stdout/stderr read ends as raw fds, and reporting its start and exit
// (not its output) through a SubprocessProtocol
// (spec.md §1, "subprocess control"; grounded on the teacher's goroutine/
// CallSoonThreadSafe bridging pattern used for Executor, applied here to
// os/exec.Cmd.Wait instead of a user function).
type Process struct {
	loop  *Loop
	cmd   *exec.Cmd
	proto SubprocessProtocol

	stdin    *os.File
	stdoutFd int
	stderrFd int
	exited   bool
}

// SubprocessOptions configures a spawned child process.
type SubprocessOptions struct {
	Args []string
	Env  []string
	Dir  string
}

// Spawn starts name with opts under loop's supervision. Stdout and stderr
// are read via the loop's own selector (not Go's blocking os.File reads)
// by exposing their read ends as raw, non-blocking fds — callers wire them
// into transport.NewReadPipeTransport/transport.NewWritePipeTransport using
// the fds returned by StdoutFd/StderrFd/StdinFd. Spawn itself only starts
// the process and its exit-wait goroutine; it does not know about
// transport.Transport.
func spawn(loop *Loop, name string, opts SubprocessOptions, proto SubprocessProtocol) (*Process, error) {
	cmd := exec.Command(name, opts.Args...)
	cmd.Env = opts.Env
	cmd.Dir = opts.Dir

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, err
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, err
	}

	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, err
	}

	// The child inherited the write ends; this process no longer needs them.
	stdinR.Close()
	stdoutW.Close()
	stderrW.Close()

	p := &Process{
		loop:     loop,
		cmd:      cmd,
		proto:    proto,
		stdin:    stdinW,
		stdoutFd: int(stdoutR.Fd()),
		stderrFd: int(stderrR.Fd()),
	}

	go p.wait()

	return p, nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	code := exitCode(p.cmd, err)
	p.loop.CallSoonThreadSafe(func() {
		p.exited = true
		p.proto.ProcessExited(code)
	})
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return ws.ExitStatus()
		}
	}
	return -1
}

// StdinFd returns the raw fd of the child's stdin write end, for wiring
// into a transport.WritePipeTransport.
func (p *Process) StdinFd() int { return int(p.stdin.Fd()) }

// StdoutFd returns the raw fd of the child's stdout read end.
func (p *Process) StdoutFd() int { return p.stdoutFd }

// StderrFd returns the raw fd of the child's stderr read end.
func (p *Process) StderrFd() int { return p.stderrFd }

// Pid returns the child's process ID.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Signal sends sig to the child.
func (p *Process) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }

// Kill terminates the child immediately.
func (p *Process) Kill() error { return p.cmd.Process.Kill() }

// Exited reports whether ProcessExited has already fired.
func (p *Process) Exited() bool { return p.exited }

// Spawn starts name with opts, invoking proto.ProcessStarted once the pipes
// are ready. Callers typically follow Spawn with transport.
// NewReadPipeTransport(loop, p.StdoutFd(), ...) /
// NewWritePipeTransport(loop, p.StdinFd(), ...) to drive the child's pipes
// through the loop's selector rather than blocking os.File I/O.
func Spawn(loop *Loop, name string, opts SubprocessOptions, proto SubprocessProtocol) (*Process, error) {
	p, err := spawn(loop, name, opts, proto)
	if err != nil {
		return nil, err
	}
	proto.ProcessStarted(p)
	return p, nil
}
