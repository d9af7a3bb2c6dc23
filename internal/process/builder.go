// Package process owns one child process per invocation: it spawns the CLI
// with a constrained environment, feeds its stdout through the protocol
// pipeline, buffers stderr, and resolves a single terminal Outcome.
package process

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"time"
)

// DefaultAbortGrace is how long an aborted child gets to exit after SIGTERM
// before it is killed.
const DefaultAbortGrace = 5 * time.Second

// CommandFactoryFunc creates the exec.Cmd. Tests use it to substitute the
// executable.
type CommandFactoryFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Builder collects the configuration for one child process.
type Builder struct {
	ctx            context.Context
	name           string
	execPath       string
	args           []string
	workDir        string
	env            []string
	timeout        time.Duration
	abortGrace     time.Duration
	verbose        bool
	commandFactory CommandFactoryFunc
}

// NewBuilder creates a Builder bound to ctx. Cancelling ctx aborts the run.
func NewBuilder(ctx context.Context) *Builder {
	return &Builder{
		ctx:        ctx,
		abortGrace: DefaultAbortGrace,
	}
}

// WithExecutable sets the executable path and its arguments.
func (b *Builder) WithExecutable(path string, args []string) *Builder {
	b.execPath = path
	b.args = args
	return b
}

// WithName sets the name used in failure messages. Defaults to the
// executable's base name.
func (b *Builder) WithName(name string) *Builder {
	b.name = name
	return b
}

// WithWorkDir sets the child's working directory.
func (b *Builder) WithWorkDir(dir string) *Builder {
	b.workDir = dir
	return b
}

// WithEnv adds "KEY=VALUE" entries on top of the constrained environment.
func (b *Builder) WithEnv(env []string) *Builder {
	b.env = env
	return b
}

// WithTimeout bounds the whole run. Zero means no timeout.
func (b *Builder) WithTimeout(d time.Duration) *Builder {
	b.timeout = d
	return b
}

// WithAbortGrace sets how long to wait after SIGTERM before SIGKILL.
func (b *Builder) WithAbortGrace(d time.Duration) *Builder {
	if d > 0 {
		b.abortGrace = d
	}
	return b
}

// WithVerbose enables debug and diagnostic notifications.
func (b *Builder) WithVerbose(verbose bool) *Builder {
	b.verbose = verbose
	return b
}

// WithCommandFactory overrides how the exec.Cmd is constructed.
func (b *Builder) WithCommandFactory(fn CommandFactoryFunc) *Builder {
	b.commandFactory = fn
	return b
}

func (b *Builder) validate() error {
	if b.ctx == nil {
		return errors.New("process builder: context is required")
	}
	if b.execPath == "" {
		return errors.New("process builder: executable path is required")
	}
	return nil
}

func (b *Builder) displayName() string {
	if b.name != "" {
		return b.name
	}
	return filepath.Base(b.execPath)
}

// procContext derives the run's context from the builder's.
func (b *Builder) procContext() (context.Context, context.CancelFunc) {
	if b.timeout > 0 {
		return context.WithTimeout(b.ctx, b.timeout)
	}
	return context.WithCancel(b.ctx)
}

func (b *Builder) command(ctx context.Context) *exec.Cmd {
	var cmd *exec.Cmd
	if b.commandFactory != nil {
		cmd = b.commandFactory(ctx, b.execPath, b.args...)
	} else {
		// #nosec G204 -- args are built from client options
		cmd = exec.CommandContext(ctx, b.execPath, b.args...)
	}
	cmd.Dir = b.workDir
	cmd.Env = Environ(b.env...)
	cmd.Stdin = nil
	return cmd
}
