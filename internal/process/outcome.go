package process

import "github.com/zjrosen/claudecode/internal/protocol"

// OutcomeKind is the terminal result of a Run.
type OutcomeKind int

const (
	Completed OutcomeKind = iota + 1
	Failed
	Aborted
)

func (k OutcomeKind) String() string {
	switch k {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	default:
		return "unresolved"
	}
}

// Outcome is resolved exactly once per Run.
type Outcome struct {
	Kind OutcomeKind
	// Text is the completion text (Completed only).
	Text string
	// SessionID is the last session id seen, whatever the outcome.
	SessionID string
	// Err is the failure reason (Failed) or ErrAborted (Aborted).
	Err error
	// ExitCode is the child's exit status, -1 when it was not observed.
	ExitCode int
}

// Notification converts o into the terminal caller notification.
func (o Outcome) Notification() protocol.Notification {
	switch o.Kind {
	case Completed:
		return protocol.Notification{Kind: protocol.NotifyComplete, Text: o.Text, SessionID: o.SessionID}
	case Aborted:
		return protocol.Notification{Kind: protocol.NotifyAborted, SessionID: o.SessionID, Err: o.Err}
	default:
		return protocol.Notification{Kind: protocol.NotifyError, SessionID: o.SessionID, Err: o.Err}
	}
}
