package claude

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/tracing"
)

// chatState drives the bounded auth retry.
type chatState int

const (
	stateFirstAttempt chatState = iota
	stateRetrying
	stateDone
)

func (s chatState) String() string {
	switch s {
	case stateFirstAttempt:
		return "first_attempt"
	case stateRetrying:
		return "retrying"
	default:
		return "done"
	}
}

// Chat runs the CLI to completion in json mode and parses its output.
// resumeID continues an earlier session when non-empty.
//
// A non-zero exit is reported through Response, not as an error; errors are
// returned only when the CLI could not be run at all (spawn failure,
// timeout, cancellation). If the output carries an auth-failure signature
// and a TokenRefresher is configured, credentials are refreshed and the
// same invocation is retried exactly once.
func (c *Client) Chat(ctx context.Context, p Prompt, resumeID string) (*Response, error) {
	o := c.Options()
	args := buildArgs(o, FormatJSON, p, resumeID)
	logArgs(o, args)

	ctx, span := c.tracer.Start(ctx, tracing.SpanChat, trace.WithAttributes(
		attribute.String(tracing.AttrModel, o.Model),
		attribute.String(tracing.AttrResumeID, resumeID),
	))
	defer span.End()

	var (
		resp    *Response
		err     error
		attempt int
	)
	for state := stateFirstAttempt; state != stateDone; {
		attempt++
		resp, err = c.attempt(ctx, o, args, attempt)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		state = c.nextState(ctx, state, resp)
	}

	resp.Attempts = attempt
	span.SetAttributes(
		attribute.Int(tracing.AttrExitCode, resp.ExitCode),
		attribute.String(tracing.AttrSessionID, resp.SessionID()),
	)
	if !resp.Success {
		span.SetStatus(codes.Error, fmt.Sprintf("exit code %d", resp.ExitCode))
	}
	return resp, nil
}

// nextState applies the retry guard: retry only after the first attempt,
// only on an auth-failure signature, and only if the refresh succeeded.
func (c *Client) nextState(ctx context.Context, state chatState, resp *Response) chatState {
	if state != stateFirstAttempt {
		return stateDone
	}
	if c.refresher == nil || !resp.document().IsAuthFailure() {
		return stateDone
	}

	log.Info(log.CatAuth, "auth failure detected, refreshing token", "result", resp.document().Result)
	trace.SpanFromContext(ctx).AddEvent("token_refresh",
		trace.WithAttributes(attribute.String(tracing.AttrRetryReason, resp.document().Result)))

	if err := c.refresher.Refresh(ctx); err != nil {
		log.ErrorErr(log.CatAuth, "token refresh failed, not retrying", err)
		return stateDone
	}
	return stateRetrying
}

func (c *Client) attempt(ctx context.Context, o Options, args []string, n int) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, tracing.SpanAttempt,
		trace.WithAttributes(attribute.Int(tracing.AttrAttempt, n)))
	defer span.End()

	res, err := c.builder(ctx, o, args).Exec()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int(tracing.AttrExitCode, res.ExitCode))

	msg, parseErr := ParseDocument(res.Stdout)
	if parseErr != nil {
		log.Warn(log.CatProc, "could not parse CLI output", "error", parseErr, "stdout_bytes", len(res.Stdout))
	}

	resp := &Response{
		Success:  res.ExitCode == 0,
		ExitCode: res.ExitCode,
		Stderr:   res.Stderr,
		ParseErr: parseErr,
	}
	if resp.Success {
		resp.Message = msg
	} else {
		resp.Error = msg
	}
	if msg != nil {
		span.SetAttributes(attribute.Float64(tracing.AttrCostUSD, msg.Cost()))
	}
	return resp, nil
}
