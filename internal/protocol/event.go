package protocol

import (
	"encoding/json"
	"fmt"
)

// EventKind classifies a decoded stream line.
type EventKind int

const (
	// EventDebug is any JSON value the decoder does not recognise.
	EventDebug EventKind = iota
	// EventToken carries an incremental text fragment.
	EventToken
	// EventResult is the terminal success payload.
	EventResult
	// EventError is an explicit failure payload.
	EventError
	// EventSession announces a session id without completing the run.
	EventSession
)

func (k EventKind) String() string {
	switch k {
	case EventToken:
		return "token"
	case EventResult:
		return "result"
	case EventError:
		return "error"
	case EventSession:
		return "session"
	default:
		return "debug"
	}
}

// Event is one decoded line. Which fields are set depends on Kind:
// Text for token and result, SessionID for result and session, Reason for
// error. Raw always holds the original JSON.
type Event struct {
	Kind      EventKind
	Text      string
	SessionID string
	Reason    string
	Raw       json.RawMessage
}

// DefaultErrorReason is used when an error payload names no reason.
const DefaultErrorReason = "unknown streaming error"

// StreamError is the failure reason carried by an error event.
type StreamError struct {
	Reason string
}

func (e *StreamError) Error() string {
	return e.Reason
}

// MalformedLineError reports a line that is not valid JSON.
type MalformedLineError struct {
	Line string
	Err  error
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed stream line %q: %v", truncate(e.Line, 120), e.Err)
}

func (e *MalformedLineError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
