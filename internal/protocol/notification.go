package protocol

import "encoding/json"

// NotificationKind is the caller-facing notification type.
type NotificationKind int

const (
	NotifyToken NotificationKind = iota
	NotifySession
	NotifyDebug
	NotifyDiagnostic
	NotifyComplete
	NotifyError
	NotifyAborted
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyToken:
		return "token"
	case NotifySession:
		return "session"
	case NotifyDebug:
		return "debug"
	case NotifyDiagnostic:
		return "diagnostic"
	case NotifyComplete:
		return "complete"
	case NotifyError:
		return "error"
	case NotifyAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Notification is delivered to the caller of a streaming run. Exactly one
// terminal notification (complete, error or aborted) ends every run.
type Notification struct {
	Kind NotificationKind
	// Text is the new token increment, the completed text, or the raw
	// malformed line for a diagnostic.
	Text      string
	SessionID string
	Err       error
	Raw       json.RawMessage
}

// IsTerminal reports whether n ends the run.
func (n Notification) IsTerminal() bool {
	return n.Kind == NotifyComplete || n.Kind == NotifyError || n.Kind == NotifyAborted
}

// Handlers is a callback view over a notification stream. Nil callbacks are
// skipped.
type Handlers struct {
	OnToken      func(text string)
	OnSession    func(sessionID string)
	OnDebug      func(raw json.RawMessage)
	OnDiagnostic func(line string, err error)
	OnComplete   func(text, sessionID string)
	OnError      func(err error)
	OnAborted    func()
}

// Dispatch invokes the callback matching n.
func (h Handlers) Dispatch(n Notification) {
	switch n.Kind {
	case NotifyToken:
		if h.OnToken != nil {
			h.OnToken(n.Text)
		}
	case NotifySession:
		if h.OnSession != nil {
			h.OnSession(n.SessionID)
		}
	case NotifyDebug:
		if h.OnDebug != nil {
			h.OnDebug(n.Raw)
		}
	case NotifyDiagnostic:
		if h.OnDiagnostic != nil {
			h.OnDiagnostic(n.Text, n.Err)
		}
	case NotifyComplete:
		if h.OnComplete != nil {
			h.OnComplete(n.Text, n.SessionID)
		}
	case NotifyError:
		if h.OnError != nil {
			h.OnError(n.Err)
		}
	case NotifyAborted:
		if h.OnAborted != nil {
			h.OnAborted()
		}
	}
}

// Consume dispatches every notification from ch until it closes and returns
// the terminal notification, if one was seen.
func (h Handlers) Consume(ch <-chan Notification) (Notification, bool) {
	var last Notification
	var seen bool
	for n := range ch {
		h.Dispatch(n)
		if n.IsTerminal() {
			last, seen = n, true
		}
	}
	return last, seen
}
