package updater

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultCommandTimeout bounds every external command invocation.
	DefaultCommandTimeout = 10 * time.Minute

	// maxOutputBytes caps captured stdout/stderr per stream so a noisy
	// subprocess (npm, pg_dump) cannot grow memory without bound.
	maxOutputBytes = 50 * 1024 * 1024
)

// RunOpts holds per-invocation options for the command runner
type RunOpts struct {
	Dir     string        // working directory, defaults to the project root
	Env     []string      // appended to the current process environment
	Timeout time.Duration // defaults to DefaultCommandTimeout
}

// CmdResult is the captured output of a completed command
type CmdResult struct {
	Stdout string
	Stderr string
}

// ExecError describes a failed or timed-out command
type ExecError struct {
	Name     string
	Args     []string
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *ExecError) Error() string {
	cmd := e.Name
	if len(e.Args) > 0 {
		cmd += " " + strings.Join(e.Args, " ")
	}
	if e.TimedOut {
		return fmt.Sprintf("command timed out: %s", cmd)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		// Keep the tail: the actionable part of tool output is at the end
		if len(s) > 500 {
			s = s[len(s)-500:]
		}
		return fmt.Sprintf("command failed: %s: %s", cmd, s)
	}
	return fmt.Sprintf("command failed: %s: %v", cmd, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Runner executes external commands. The production implementation shells
// out; tests substitute a fake.
type Runner interface {
	Run(name string, args []string, opts RunOpts) (CmdResult, error)
}

type execRunner struct {
	defaultDir string
}

// NewRunner returns the OS-backed command runner rooted at dir
func NewRunner(dir string) Runner {
	return &execRunner{defaultDir: dir}
}

// capWriter keeps at most limit bytes and silently discards the rest.
// Truncated output must not fail the command.
type capWriter struct {
	buf   bytes.Buffer
	limit int
}

func (w *capWriter) Write(p []byte) (int, error) {
	if remaining := w.limit - w.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			w.buf.Write(p[:remaining])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}

func (r *execRunner) Run(name string, args []string, opts RunOpts) (CmdResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)

	cmd.Dir = opts.Dir
	if cmd.Dir == "" {
		cmd.Dir = r.defaultDir
	}

	cmd.Env = os.Environ()
	if len(opts.Env) > 0 {
		cmd.Env = append(cmd.Env, opts.Env...)
	}

	stdout := &capWriter{limit: maxOutputBytes}
	stderr := &capWriter{limit: maxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	result := CmdResult{Stdout: stdout.buf.String(), Stderr: stderr.buf.String()}

	if err != nil {
		return result, &ExecError{
			Name:     name,
			Args:     args,
			Stderr:   result.Stderr,
			TimedOut: ctx.Err() == context.DeadlineExceeded,
			Err:      err,
		}
	}
	return result, nil
}
