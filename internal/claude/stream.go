package claude

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/claudecode/internal/process"
	"github.com/zjrosen/claudecode/internal/tracing"
)

// Stream starts a stream-json invocation and returns its Run. Read
// Run.Notifications for tokens and the terminal notification, or call
// Run.Wait for the Outcome. Cancelling ctx aborts the run.
func (c *Client) Stream(ctx context.Context, p Prompt, resumeID string) (*process.Run, error) {
	o := c.Options()
	args := buildArgs(o, FormatStreamJSON, p, resumeID)
	logArgs(o, args)

	ctx, span := c.tracer.Start(ctx, tracing.SpanStream, trace.WithAttributes(
		attribute.String(tracing.AttrModel, o.Model),
		attribute.String(tracing.AttrResumeID, resumeID),
	))

	run, err := c.builder(ctx, o, args).Start()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}
	span.SetAttributes(attribute.String(tracing.AttrRunID, run.ID()))

	go func() {
		out := run.Wait()
		span.SetAttributes(
			attribute.String(tracing.AttrOutcome, out.Kind.String()),
			attribute.Int(tracing.AttrExitCode, out.ExitCode),
			attribute.String(tracing.AttrSessionID, out.SessionID),
		)
		switch out.Kind {
		case process.Failed:
			span.SetStatus(codes.Error, out.Err.Error())
		case process.Aborted:
			span.AddEvent(tracing.EventAborted)
		}
		span.End()
	}()

	return run, nil
}
