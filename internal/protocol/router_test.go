package protocol

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) emit(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) tokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notes {
		if n.Kind == NotifyToken {
			out = append(out, n.Text)
		}
	}
	return out
}

func (r *recorder) kinds() []NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []NotificationKind
	for _, n := range r.notes {
		out = append(out, n.Kind)
	}
	return out
}

func TestRouter_PrefixExtensionDeliversOnlySuffix(t *testing.T) {
	rec := &recorder{}
	r := NewRouter(rec.emit)

	r.Route(Event{Kind: EventToken, Text: "Hello "})
	r.Route(Event{Kind: EventToken, Text: "Hello world!"})

	require.Equal(t, []string{"Hello ", "world!"}, rec.tokens())
	require.Equal(t, "Hello world!", r.Snapshot().AccumulatedText)
}

func TestRouter_DisjointFragmentDeliveredWhole(t *testing.T) {
	rec := &recorder{}
	r := NewRouter(rec.emit, WithVerbose(true))

	r.Route(Event{Kind: EventToken, Text: "Hello "})
	r.Route(Event{Kind: EventToken, Text: "world!"})
	// overlaps "world!" but does not extend the accumulated text
	r.Route(Event{Kind: EventToken, Text: "d! Bye"})

	require.Equal(t, []string{"Hello ", "world!", "d! Bye"}, rec.tokens())
	require.Equal(t, "Hello world!d! Bye", r.Snapshot().AccumulatedText)
}

func TestRouter_DuplicateFragmentDropped(t *testing.T) {
	rec := &recorder{}
	r := NewRouter(rec.emit)

	r.Route(Event{Kind: EventToken, Text: "same"})
	r.Route(Event{Kind: EventToken, Text: "same"})

	require.Equal(t, []string{"same"}, rec.tokens())
}

func TestRouter_ResultCompletesAndStopsRouting(t *testing.T) {
	rec := &recorder{}
	r := NewRouter(rec.emit)

	r.Route(Event{Kind: EventToken, Text: "partial"})
	r.Route(Event{Kind: EventResult, Text: "final answer", SessionID: "s-1"})
	r.Route(Event{Kind: EventToken, Text: "late"})
	r.Route(Event{Kind: EventError, Reason: "late error"})

	st := r.Snapshot()
	require.True(t, st.Completed)
	require.Equal(t, "s-1", st.SessionID)
	require.Equal(t, "partial", st.AccumulatedText)
	require.Equal(t, "final answer", st.FinalText())
	require.Nil(t, st.Failure)
	require.Equal(t, []string{"partial"}, rec.tokens())
}

func TestRouter_EmptyResultFallsBackToAccumulated(t *testing.T) {
	r := NewRouter(nil)

	r.Route(Event{Kind: EventToken, Text: "streamed"})
	r.Route(Event{Kind: EventResult})

	require.Equal(t, "streamed", r.Snapshot().FinalText())
}

func TestRouter_FirstErrorWins(t *testing.T) {
	rec := &recorder{}
	r := NewRouter(rec.emit)

	r.Route(Event{Kind: EventError, Reason: "first"})
	r.Route(Event{Kind: EventError, Reason: "second"})

	st := r.Snapshot()
	require.NotNil(t, st.Failure)
	require.Equal(t, "first", st.Failure.Error())
	require.Empty(t, rec.kinds(), "error events surface at exit, not immediately")
}

func TestRouter_SessionNotifiesOnChange(t *testing.T) {
	rec := &recorder{}
	r := NewRouter(rec.emit)

	r.Route(Event{Kind: EventSession, SessionID: "a"})
	r.Route(Event{Kind: EventSession, SessionID: "a"})
	r.Route(Event{Kind: EventSession, SessionID: "b"})
	r.Route(Event{Kind: EventSession})

	require.Equal(t, []NotificationKind{NotifySession, NotifySession}, rec.kinds())
	require.Equal(t, "b", r.SessionID())
}

func TestRouter_DebugOnlyWhenVerbose(t *testing.T) {
	quiet := &recorder{}
	NewRouter(quiet.emit).Route(Event{Kind: EventDebug, Raw: []byte(`{}`)})
	require.Empty(t, quiet.kinds())

	loud := &recorder{}
	NewRouter(loud.emit, WithVerbose(true)).Route(Event{Kind: EventDebug, Raw: []byte(`{}`)})
	require.Equal(t, []NotificationKind{NotifyDebug}, loud.kinds())
}

func TestRouter_MuteSuppressesNotifications(t *testing.T) {
	rec := &recorder{}
	r := NewRouter(rec.emit, WithVerbose(true))

	r.Mute()
	r.Route(Event{Kind: EventToken, Text: "x"})
	r.Malformed("junk", nil)

	require.Empty(t, rec.kinds())
	require.Equal(t, "x", r.Snapshot().AccumulatedText)
}

func TestIncrement(t *testing.T) {
	delta, replaced := Increment("", "abc")
	require.Equal(t, "abc", delta)
	require.False(t, replaced)

	delta, replaced = Increment("ab", "abc")
	require.Equal(t, "c", delta)
	require.False(t, replaced)

	delta, replaced = Increment("abc", "xyz")
	require.Equal(t, "xyz", delta)
	require.True(t, replaced)
}

// Accumulated text only grows, and every delivered token is a suffix of it
// at the time of delivery.
func TestRouter_AccumulatedTextMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rec := &recorder{}
		r := NewRouter(rec.emit)

		fragments := rapid.SliceOf(rapid.StringMatching(`[a-c ]{1,6}`)).Draw(rt, "fragments")
		prev := ""
		for i, f := range fragments {
			if i > 0 && rapid.Bool().Draw(rt, "extend") {
				f = prev + f
			}
			before := r.Snapshot().AccumulatedText
			delivered := len(rec.tokens())
			r.Route(Event{Kind: EventToken, Text: f})
			after := r.Snapshot().AccumulatedText

			require.True(rt, strings.HasPrefix(after, before))
			if after != before {
				tokens := rec.tokens()
				require.Len(rt, tokens, delivered+1)
				require.Equal(rt, before+tokens[delivered], after)
			}
			prev = after
		}
		require.Equal(rt, strings.Join(rec.tokens(), ""), r.Snapshot().AccumulatedText)
	})
}
