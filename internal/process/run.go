package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"

	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/procattr"
	"github.com/zjrosen/claudecode/internal/protocol"
)

// Run is one streaming invocation of the child process.
//
// Notifications are queued without bound, so a slow reader never stalls the
// child. Every Run ends with exactly one terminal notification followed by
// the channel closing.
type Run struct {
	id     string
	name   string
	cmd    *exec.Cmd
	ctx    context.Context
	cancel context.CancelFunc
	router *protocol.Router
	stderr *syncBuffer
	box    *mailbox

	out         chan protocol.Notification
	startFwd    sync.Once
	released    chan struct{}
	releaseOnce sync.Once

	mu      sync.RWMutex
	status  Status
	outcome Outcome
	done    chan struct{}
	started time.Time
}

// Start validates the configuration and spawns the child. It returns an
// error only for misconfiguration; a spawn failure yields a Run that has
// already resolved to Failed.
func (b *Builder) Start() (*Run, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := b.procContext()
	r := &Run{
		id:       uuid.New().String(),
		name:     b.displayName(),
		ctx:      ctx,
		cancel:   cancel,
		stderr:   &syncBuffer{},
		box:      newMailbox(),
		out:      make(chan protocol.Notification),
		released: make(chan struct{}),
		status:   StatusPending,
		done:     make(chan struct{}),
	}
	r.router = protocol.NewRouter(r.emit, protocol.WithVerbose(b.verbose))

	cmd := b.command(ctx)
	cmd.Stdout = protocol.NewPipeline(r.router)
	cmd.Stderr = r.stderr
	procattr.Set(cmd)
	cmd.Cancel = func() error {
		return procattr.Terminate(cmd.Process)
	}
	cmd.WaitDelay = b.abortGrace
	r.cmd = cmd

	r.started = time.Now()
	if err := cmd.Start(); err != nil {
		log.ErrorErr(log.CatProc, "spawn failed", err, "run", r.id, "path", b.execPath)
		r.finish(Outcome{Kind: Failed, Err: &SpawnError{Path: b.execPath, Err: err}, ExitCode: -1})
		return r, nil
	}

	r.setStatus(StatusRunning)
	log.Debug(log.CatProc, "spawned", "run", r.id, "pid", cmd.Process.Pid, "args", strings.Join(cmd.Args, " "))

	go r.wait()
	return r, nil
}

// ID returns the run's unique id.
func (r *Run) ID() string {
	return r.id
}

// PID returns the child's process id, or -1 if it never started.
func (r *Run) PID() int {
	if r.cmd == nil || r.cmd.Process == nil {
		return -1
	}
	return r.cmd.Process.Pid
}

// Status returns the current lifecycle state.
func (r *Run) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// SessionID returns the last session id seen so far.
func (r *Run) SessionID() string {
	return r.router.SessionID()
}

// Stderr returns the stderr captured so far.
func (r *Run) Stderr() string {
	return r.stderr.String()
}

// Notifications returns the run's notification channel. It is closed after
// the terminal notification. Callers that stop reading early must call Close.
func (r *Run) Notifications() <-chan protocol.Notification {
	r.startFwd.Do(func() { go r.forward() })
	return r.out
}

// Done is closed once the Outcome is resolved.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the Outcome is resolved.
func (r *Run) Wait() Outcome {
	<-r.done
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.outcome
}

// Abort requests termination. The eventual Outcome is Aborted regardless of
// what the child has already printed, unless the run had already resolved.
// Abort does not wait for the child to exit.
func (r *Run) Abort() {
	r.mu.Lock()
	if r.status.IsTerminal() {
		r.mu.Unlock()
		return
	}
	r.status = StatusAborted
	r.mu.Unlock()

	r.router.Mute()
	log.Debug(log.CatProc, "abort requested", "run", r.id, "pid", r.PID())
	r.cancel()
}

// Close aborts the run if it is still going and releases the notification
// forwarder. Safe to call more than once.
func (r *Run) Close() {
	r.Abort()
	r.releaseOnce.Do(func() { close(r.released) })
}

func (r *Run) setStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.IsTerminal() {
		r.status = s
	}
}

func (r *Run) emit(n protocol.Notification) {
	r.box.push(n)
}

func (r *Run) wait() {
	waitErr := r.cmd.Wait()

	r.mu.Lock()
	aborted := r.status == StatusAborted
	r.mu.Unlock()
	if aborted {
		// stragglers that inherited the group
		_ = procattr.Kill(r.cmd.Process)
	}

	r.finish(r.classify(waitErr))
}

// classify maps the exit to an Outcome. Precedence: abort, timeout,
// non-zero exit, error event, completion.
func (r *Run) classify(waitErr error) Outcome {
	st := r.router.Snapshot()
	code := exitCode(r.cmd, waitErr)
	base := Outcome{SessionID: st.SessionID, ExitCode: code}

	r.mu.RLock()
	aborted := r.status == StatusAborted
	r.mu.RUnlock()

	switch {
	case aborted || (errors.Is(r.ctx.Err(), context.Canceled) && !r.exitedCleanly(code)):
		base.Kind, base.Err = Aborted, ErrAborted
		return base

	case errors.Is(r.ctx.Err(), context.DeadlineExceeded):
		base.Kind, base.Err = Failed, ErrTimeout
		return base

	case code != 0:
		base.Kind = Failed
		exitErr := &ExitError{Name: r.name, Code: code, Stderr: cleanStderr(r.stderr.String())}
		if st.Failure != nil {
			exitErr.Reason = st.Failure
		}
		base.Err = exitErr
		return base

	case waitErr != nil && !errors.Is(waitErr, exec.ErrWaitDelay):
		base.Kind, base.Err = Failed, waitErr
		return base

	case st.Failure != nil:
		base.Kind, base.Err = Failed, st.Failure
		return base
	}

	if waitErr != nil {
		log.Debug(log.CatProc, "output pipes held open after exit", "run", r.id)
	}
	base.Kind, base.Text = Completed, st.FinalText()
	return base
}

// exitedCleanly reports whether the child exited with status 0 on its own,
// so a context cancelled after that point does not turn the run into an abort.
func (r *Run) exitedCleanly(code int) bool {
	ps := r.cmd.ProcessState
	return ps != nil && ps.Exited() && code == 0
}

// finish records o and enqueues the terminal notification. Only the first
// call has any effect.
func (r *Run) finish(o Outcome) {
	r.mu.Lock()
	select {
	case <-r.done:
		r.mu.Unlock()
		return
	default:
	}
	if r.status == StatusAborted && o.Kind != Aborted {
		o = Outcome{Kind: Aborted, SessionID: o.SessionID, Err: ErrAborted, ExitCode: o.ExitCode}
	}
	switch o.Kind {
	case Completed:
		r.status = StatusCompleted
	case Aborted:
		r.status = StatusAborted
	default:
		r.status = StatusFailed
	}
	r.outcome = o
	close(r.done)
	r.mu.Unlock()

	r.cancel()
	r.box.close(o.Notification())

	log.Debug(log.CatProc, "run resolved",
		"run", r.id, "outcome", o.Kind, "exit", o.ExitCode,
		"elapsed", time.Since(r.started).Round(time.Millisecond), "error", o.Err)
}

// forward drains the mailbox into r.out until the terminal notification has
// been delivered or the run is closed.
func (r *Run) forward() {
	defer close(r.out)
	for {
		items, closed := r.box.take()
		for _, n := range items {
			select {
			case r.out <- n:
			case <-r.released:
				return
			}
		}
		if closed {
			return
		}
		if len(items) == 0 {
			select {
			case <-r.box.ready:
			case <-r.released:
				return
			}
		}
	}
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

// cleanStderr strips terminal escapes the child may emit despite NO_COLOR.
func cleanStderr(s string) string {
	return strings.TrimSpace(ansi.Strip(s))
}

// syncBuffer is a bytes.Buffer safe for the stderr copier and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
