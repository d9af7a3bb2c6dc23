package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/procattr"
)

// Result is the buffered output of a run-to-completion invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Exec runs the child to completion with all output buffered. A non-zero
// exit is reported through Result.ExitCode, not as an error. Errors are
// returned for spawn failures (*SpawnError), timeouts (ErrTimeout) and
// cancellation of the builder's context (ErrAborted).
func (b *Builder) Exec() (Result, error) {
	if err := b.validate(); err != nil {
		return Result{}, err
	}

	ctx, cancel := b.procContext()
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := b.command(ctx)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	procattr.Set(cmd)
	cmd.Cancel = func() error {
		return procattr.Terminate(cmd.Process)
	}
	cmd.WaitDelay = b.abortGrace

	log.Debug(log.CatProc, "exec", "args", strings.Join(cmd.Args, " "))
	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, &SpawnError{Path: b.execPath, Err: err}
	}
	waitErr := cmd.Wait()

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   cleanStderr(stderr.String()),
		ExitCode: exitCode(cmd, waitErr),
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return res, ErrTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		return res, ErrAborted
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		return res, waitErr
	}

	log.Debug(log.CatProc, "exec finished", "exit", res.ExitCode, "stdout_bytes", len(res.Stdout))
	return res, nil
}
