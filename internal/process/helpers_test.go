package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/claudecode/internal/protocol"
)

// collect reads notifications until the channel closes.
func collect(t *testing.T, ch <-chan protocol.Notification) []protocol.Notification {
	t.Helper()
	var out []protocol.Notification
	timeout := time.After(10 * time.Second)
	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, n)
		case <-timeout:
			require.Fail(t, "timeout waiting for notifications to close")
			return out
		}
	}
}

func tokens(notes []protocol.Notification) []string {
	var out []string
	for _, n := range notes {
		if n.Kind == protocol.NotifyToken {
			out = append(out, n.Text)
		}
	}
	return out
}

func terminals(notes []protocol.Notification) []protocol.Notification {
	var out []protocol.Notification
	for _, n := range notes {
		if n.IsTerminal() {
			out = append(out, n)
		}
	}
	return out
}

// next waits for the next notification of kind.
func next(t *testing.T, ch <-chan protocol.Notification, kind protocol.NotificationKind) protocol.Notification {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case n, ok := <-ch:
			require.True(t, ok, "channel closed before %s", kind)
			if n.Kind == kind {
				return n
			}
		case <-timeout:
			require.Fail(t, "timeout waiting for notification", "kind %s", kind)
			return protocol.Notification{}
		}
	}
}
