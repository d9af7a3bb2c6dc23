package tracing

// Span names.
const (
	SpanChat    = "claude.chat"
	SpanAttempt = "claude.chat.attempt"
	SpanStream  = "claude.stream"
	SpanRefresh = "auth.refresh"
	SpanVersion = "claude.version"
)

// Span attribute keys.
const (
	AttrRunID          = "run.id"
	AttrSessionID      = "session.id"
	AttrResumeID       = "session.resume_id"
	AttrModel          = "claude.model"
	AttrAttempt        = "chat.attempt"
	AttrRetryReason    = "chat.retry_reason"
	AttrExitCode       = "process.exit_code"
	AttrOutcome        = "run.outcome"
	AttrTokenCount     = "stream.tokens"
	AttrCostUSD        = "claude.cost_usd"
	AttrErrorMessage   = "error.message"
	AttrExecutablePath = "process.executable"
)

// Span event names.
const (
	EventFirstToken = "first_token"
	EventAborted    = "aborted"
)
