// Package claude is the public face of the module: it turns prompts into
// claude CLI invocations, either run to completion (Chat) or streamed
// (Stream), and reports version information.
package claude

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/claudecode/internal/cachemanager"
	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/process"
	"github.com/zjrosen/claudecode/internal/tracing"
)

const versionTTL = time.Hour

// TokenRefresher renews the CLI's OAuth credentials. It is consulted at most
// once per Chat call.
type TokenRefresher interface {
	Refresh(ctx context.Context) error
}

// Client invokes the claude CLI. Safe for concurrent use; every call owns
// its own child process.
type Client struct {
	mu   sync.RWMutex
	opts Options

	refresher      TokenRefresher
	tracer         trace.Tracer
	versions       *cachemanager.ReadThroughCache[string, string]
	commandFactory process.CommandFactoryFunc
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRefresher sets the collaborator used after an auth failure.
func WithRefresher(r TokenRefresher) ClientOption {
	return func(c *Client) {
		c.refresher = r
	}
}

// WithTracer records a span per invocation.
func WithTracer(t trace.Tracer) ClientOption {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithVersionCache shares a version cache between clients.
func WithVersionCache(cache cachemanager.CacheManager[string, string]) ClientOption {
	return func(c *Client) {
		c.versions = cachemanager.NewReadThroughCache(cache, versionTTL)
	}
}

// WithCommandFactory overrides exec.Cmd construction. Factories must use
// exec.CommandContext.
func WithCommandFactory(fn process.CommandFactoryFunc) ClientOption {
	return func(c *Client) {
		c.commandFactory = fn
	}
}

// New creates a Client.
func New(opts Options, clientOpts ...ClientOption) *Client {
	c := &Client{
		opts:   opts,
		tracer: noop.NewTracerProvider().Tracer("claude"),
	}
	for _, o := range clientOpts {
		o(c)
	}
	if c.versions == nil {
		c.versions = cachemanager.NewReadThroughCache[string, string](
			cachemanager.NewInMemoryCacheManager[string, string]("claude-version", versionTTL, cachemanager.DefaultCleanupInterval),
			versionTTL,
		)
	}
	return c
}

// Options returns a copy of the current options.
func (c *Client) Options() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts
}

// SetOptions merges the non-zero fields of patch into the options.
func (c *Client) SetOptions(patch Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = c.opts.Merge(patch)
}

func (c *Client) builder(ctx context.Context, o Options, args []string) *process.Builder {
	b := process.NewBuilder(ctx).
		WithExecutable(o.executable(), args).
		WithName("claude CLI").
		WithWorkDir(o.WorkingDirectory).
		WithEnv(o.env()).
		WithTimeout(o.Timeout).
		WithAbortGrace(o.AbortGrace).
		WithVerbose(o.Verbose)
	if c.commandFactory != nil {
		b = b.WithCommandFactory(c.commandFactory)
	}
	return b
}

// Version runs `claude --version` and returns its trimmed output. Results
// are cached per executable path.
func (c *Client) Version(ctx context.Context) (string, error) {
	o := c.Options()
	return c.versions.Get(ctx, o.executable(), func(ctx context.Context) (string, error) {
		ctx, span := c.tracer.Start(ctx, tracing.SpanVersion,
			trace.WithAttributes(attribute.String(tracing.AttrExecutablePath, o.executable())))
		defer span.End()

		res, err := c.builder(ctx, o, []string{"--version"}).Exec()
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
		if res.ExitCode != 0 {
			err := fmt.Errorf("%s --version exited with code %d: %s", o.executable(), res.ExitCode, res.Stderr)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
		return strings.TrimSpace(res.Stdout), nil
	})
}

func logArgs(o Options, args []string) {
	if o.Verbose {
		log.Debug(log.CatProc, "claude args", "cwd", o.WorkingDirectory, "args", strings.Join(args, " "))
	}
}
