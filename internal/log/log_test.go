package log

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestFormat_FieldsAndOrphanKey(t *testing.T) {
	ts := time.Date(2026, 1, 2, 10, 45, 0, 0, time.UTC)

	got := format(ts, LevelWarn, CatProc, "exited", []any{"pid", 42, "code"})

	require.Equal(t, "2026-01-02T10:45:00 [WARN] [proc] exited pid=42 code=<missing>\n", got)
}

func TestWrite_RespectsMinLevelAndEnabled(t *testing.T) {
	var buf syncBuffer
	cleanup := InitWriter(&buf)
	defer cleanup()

	SetMinLevel(LevelInfo)
	Debug(CatStream, "hidden")
	Info(CatStream, "shown", "n", 1)

	SetEnabled(false)
	Error(CatStream, "also hidden")
	SetEnabled(true)
	ErrorErr(CatStream, "boom", nil)

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "[INFO] [stream] shown n=1")
	require.Contains(t, out, "[ERROR] [stream] boom error=<nil>")
}

func TestSubscribe_ReceivesEntries(t *testing.T) {
	var buf syncBuffer
	cleanup := InitWriter(&buf)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := Subscribe(ctx)
	require.NotNil(t, ch)

	Info(CatServer, "listening", "addr", ":8080")

	select {
	case ev := <-ch:
		require.True(t, strings.Contains(ev.Payload, "listening addr=:8080"))
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for log event")
	}
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelInfo, ParseLevel("INFO"))
	require.Equal(t, LevelWarn, ParseLevel("warning"))
	require.Equal(t, LevelError, ParseLevel(" error "))
	require.Equal(t, LevelDebug, ParseLevel("verbose"))
}
