package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"graphscape/internal/sandbox/runner"
)

const (
	DefaultTimeout        = 5 * time.Second
	DefaultMaxOutputBytes = 1 << 20 // 1 MiB of captured stdout/stderr each
	DefaultMaxMemoryBytes = 256 << 20
	DefaultMaxSteps       = 10_000_000
)

// Executor runs accepted scripts, one freshly spawned runner process per
// request. The parent owns the wall clock: a hung or CPU-bound child is
// killed when the timeout elapses, and the process is always reaped.
// Children are never reused, so a failed run cannot leak state forward.
type Executor struct {
	RunnerPath     string        // path to the genrunner binary
	Timeout        time.Duration // wall-clock ceiling per run
	MaxOutputBytes int64         // per-stream capture ceiling, excess discarded
	MaxMemoryBytes int64         // RLIMIT_AS applied by the child
	MaxSteps       uint64        // Starlark execution step ceiling
}

// NewExecutor returns an executor with defaults filled in. When runnerPath
// is empty the genrunner binary is expected next to the current executable.
func NewExecutor(runnerPath string) *Executor {
	if runnerPath == "" {
		if self, err := os.Executable(); err == nil {
			runnerPath = filepath.Join(filepath.Dir(self), "genrunner")
		} else {
			runnerPath = "genrunner"
		}
	}
	return &Executor{
		RunnerPath:     runnerPath,
		Timeout:        DefaultTimeout,
		MaxOutputBytes: DefaultMaxOutputBytes,
		MaxMemoryBytes: DefaultMaxMemoryBytes,
		MaxSteps:       DefaultMaxSteps,
	}
}

// Execute runs the job to completion or termination and returns the raw JSON
// value of the script's output binding. All failures are *Error values with
// kinds ExecutionTimeout, ExecutionFault, or NoResultProduced.
func (e *Executor) Execute(ctx context.Context, job runner.Job) (json.RawMessage, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if job.MaxSteps == 0 {
		job.MaxSteps = e.MaxSteps
	}
	// The child is time-bounded, not cancellable: a caller that abandons
	// the request does not kill a run in flight, the wall clock does. A
	// deadline the caller already set still tightens the bound.
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	input, err := json.Marshal(job)
	if err != nil {
		return nil, &Error{Kind: KindExecutionFault, Message: fmt.Sprintf("encode job: %v", err)}
	}

	stdout := newCappedBuffer(e.maxOutput())
	stderr := newCappedBuffer(e.maxOutput())

	cmd := exec.CommandContext(ctx, e.RunnerPath)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Minimal environment; the child inherits nothing it does not need.
	cmd.Env = []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		runner.EnvMaxMemory + "=" + strconv.FormatInt(e.maxMemory(), 10),
	}
	// Own process group so a timeout kill takes down anything the runner
	// might have forked, not just the direct child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 2 * time.Second

	runErr := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return nil, &Error{
			Kind:    KindExecutionTimeout,
			Message: fmt.Sprintf("script exceeded %s wall-clock limit", timeout),
		}
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) && exitErr.ExitCode() == runner.ExitNoResult {
			return nil, &Error{
				Kind:    KindNoResultProduced,
				Message: "script completed without assigning " + runner.ResultBinding,
			}
		}
		msg := stderr.String()
		if msg == "" {
			msg = runErr.Error()
		}
		return nil, &Error{Kind: KindExecutionFault, Message: msg}
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return nil, &Error{
			Kind:    KindNoResultProduced,
			Message: "runner produced no output",
		}
	}
	if stdout.Truncated() {
		return nil, &Error{
			Kind:    KindExecutionFault,
			Message: fmt.Sprintf("result exceeded %d byte output limit", e.maxOutput()),
		}
	}
	return json.RawMessage(out), nil
}

func (e *Executor) maxOutput() int64 {
	if e.MaxOutputBytes > 0 {
		return e.MaxOutputBytes
	}
	return DefaultMaxOutputBytes
}

func (e *Executor) maxMemory() int64 {
	if e.MaxMemoryBytes > 0 {
		return e.MaxMemoryBytes
	}
	return DefaultMaxMemoryBytes
}

// cappedBuffer keeps at most limit bytes and silently discards the rest, so
// a chatty child cannot make the parent buffer without bound.
type cappedBuffer struct {
	limit     int64
	buf       bytes.Buffer
	truncated bool
}

func newCappedBuffer(limit int64) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - int64(b.buf.Len())
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if int64(len(p)) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte     { return b.buf.Bytes() }
func (b *cappedBuffer) String() string    { return b.buf.String() }
func (b *cappedBuffer) Truncated() bool   { return b.truncated }
