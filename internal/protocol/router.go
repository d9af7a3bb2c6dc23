package protocol

import (
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/zjrosen/claudecode/internal/log"
)

// Emitter receives non-terminal notifications from a Router.
type Emitter func(Notification)

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithVerbose forwards debug events and malformed-line diagnostics.
func WithVerbose(verbose bool) RouterOption {
	return func(r *Router) {
		r.verbose = verbose
	}
}

// State is a snapshot of a run's aggregate.
type State struct {
	// AccumulatedText is every delivered token increment, in order.
	// It only grows.
	AccumulatedText string
	// ResultText is the text carried by the result event, if any.
	ResultText string
	SessionID  string
	Completed  bool
	// Failure is the first error event's reason, if any.
	Failure *StreamError
}

// FinalText is the completion text: the result payload's text when it is
// non-empty, otherwise the accumulated tokens.
func (s State) FinalText() string {
	if s.Completed && s.ResultText != "" {
		return s.ResultText
	}
	return s.AccumulatedText
}

// Router converts decoded events into notifications and tracks the run's
// aggregate State. Route and Malformed are called from the single goroutine
// reading the child's stdout; Snapshot and SessionID may be called from any
// goroutine.
type Router struct {
	emit    Emitter
	verbose bool
	dmp     *diffmatchpatch.DiffMatchPatch

	mu          sync.Mutex
	accumulated strings.Builder
	resultText  string
	sessionID   string
	completed   bool
	failure     *StreamError
	muted       bool
}

// NewRouter creates a Router that reports to emit.
func NewRouter(emit Emitter, opts ...RouterOption) *Router {
	r := &Router{
		emit: emit,
		dmp:  diffmatchpatch.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route applies one decoded event. Events after a result are ignored.
func (r *Router) Route(ev Event) {
	r.mu.Lock()
	if r.completed {
		r.mu.Unlock()
		log.Debug(log.CatStream, "event after result ignored", "kind", ev.Kind)
		return
	}

	var out *Notification
	switch ev.Kind {
	case EventToken:
		delta := r.increment(ev.Text)
		if delta != "" {
			r.accumulated.WriteString(delta)
			out = &Notification{Kind: NotifyToken, Text: delta}
		}

	case EventResult:
		r.resultText = ev.Text
		if ev.SessionID != "" {
			r.sessionID = ev.SessionID
		}
		r.completed = true

	case EventError:
		if r.failure == nil {
			r.failure = &StreamError{Reason: ev.Reason}
		}
		if ev.SessionID != "" {
			r.sessionID = ev.SessionID
		}
		log.Debug(log.CatStream, "error event", "reason", ev.Reason)

	case EventSession:
		if ev.SessionID != "" && ev.SessionID != r.sessionID {
			r.sessionID = ev.SessionID
			out = &Notification{Kind: NotifySession, SessionID: ev.SessionID}
		}

	case EventDebug:
		if r.verbose {
			out = &Notification{Kind: NotifyDebug, Raw: ev.Raw}
		}
	}
	muted := r.muted
	r.mu.Unlock()

	if out != nil && !muted && r.emit != nil {
		r.emit(*out)
	}
}

// Malformed records a line that failed to decode. It only produces a
// diagnostic notification in verbose mode.
func (r *Router) Malformed(line string, err error) {
	log.Debug(log.CatStream, "non-JSON output", "line", truncate(line, 200))
	if !r.verbose {
		return
	}
	r.mu.Lock()
	muted := r.muted
	r.mu.Unlock()
	if !muted && r.emit != nil {
		r.emit(Notification{Kind: NotifyDiagnostic, Text: line, Err: err})
	}
}

// Mute stops further notifications while state keeps being tracked. Used
// once a run is aborted.
func (r *Router) Mute() {
	r.mu.Lock()
	r.muted = true
	r.mu.Unlock()
}

// Snapshot returns the current aggregate state.
func (r *Router) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{
		AccumulatedText: r.accumulated.String(),
		ResultText:      r.resultText,
		SessionID:       r.sessionID,
		Completed:       r.completed,
		Failure:         r.failure,
	}
}

// SessionID returns the last session id seen.
func (r *Router) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// increment returns the part of text not yet delivered. Caller holds r.mu.
func (r *Router) increment(text string) string {
	acc := r.accumulated.String()
	delta, replaced := Increment(acc, text)
	if replaced && r.verbose && acc != "" {
		if overlap := r.dmp.DiffCommonOverlap(acc, text); overlap > 0 {
			log.Debug(log.CatStream, "token overlaps accumulated text without extending it",
				"overlap", overlap, "fragment", truncate(text, 80))
		}
	}
	return delta
}

// Increment compares a token fragment with the text delivered so far.
// If text extends acc, only the new suffix is returned. Otherwise text is a
// disjoint replacement and is returned whole with replaced set.
func Increment(acc, text string) (delta string, replaced bool) {
	if acc != "" && strings.HasPrefix(text, acc) {
		return text[len(acc):], false
	}
	return text, acc != ""
}
