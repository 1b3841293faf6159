package backend

import (
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// tailBuffer keeps the last max bytes written to it. The backend's stderr is
// captured here so launch failures can include useful context.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// Process is the handle for a supervised child process. It is created by
// Launch and owned by the supervisor; the done channel closes exactly once,
// after the wait error has been recorded.
type Process struct {
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	stderr    *tailBuffer

	done    chan struct{}
	waitErr error
}

func startProcess(cmd *exec.Cmd) (*Process, error) {
	tail := newTailBuffer(4096)
	cmd.Stderr = tail
	// Bound Wait against grandchildren that inherit the stderr pipe and
	// outlive the child.
	cmd.WaitDelay = 5 * time.Second
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	p := &Process{
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		stderr:    tail,
		done:      make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *Process) PID() int             { return p.pid }
func (p *Process) StartedAt() time.Time { return p.startedAt }

// Done is closed once the process has exited and Err is valid.
func (p *Process) Done() <-chan struct{} { return p.done }

// Err reports the wait error. Only meaningful after Done is closed.
func (p *Process) Err() error { return p.waitErr }

// Alive reports whether the process has not yet been reaped.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// StderrTail returns the most recent captured stderr output.
func (p *Process) StderrTail() string { return p.stderr.String() }

// Stop terminates the process: SIGTERM first, SIGKILL after the grace period.
// Returns once the process has been reaped. Safe to call on an exited process.
func (p *Process) Stop(grace time.Duration) error {
	select {
	case <-p.done:
		return p.waitErr
	default:
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.done:
		return p.waitErr
	case <-time.After(grace):
	}
	_ = p.cmd.Process.Kill()
	<-p.done
	return p.waitErr
}
