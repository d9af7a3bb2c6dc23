package claude

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/claudecode/internal/process"
	"github.com/zjrosen/claudecode/internal/protocol"
	"github.com/zjrosen/claudecode/internal/testutil"
)

func TestStream_EndToEnd(t *testing.T) {
	cli := testutil.FakeCLI(t, `
printf '%s\n' "$@" > "$DIR/args"
printf '%s\n' '{"type":"system","subtype":"init","session_id":"test-123"}'
printf '%s\n' '{"text":"Hello "}'
printf '%s\n' 'not json'
printf '%s\n' '{"text":"world!"}'
printf '%s\n' '{"type":"result","subtype":"success","result":"Hello world!","session_id":"test-123"}'
`)
	c := New(Options{ExecutablePath: cli, SkipPermissions: true})

	run, err := c.Stream(context.Background(), Text("greet"), "")
	require.NoError(t, err)

	var tokens []string
	var sessions []string
	last, ok := protocol.Handlers{
		OnToken:   func(s string) { tokens = append(tokens, s) },
		OnSession: func(id string) { sessions = append(sessions, id) },
	}.Consume(run.Notifications())

	require.True(t, ok)
	require.Equal(t, protocol.NotifyComplete, last.Kind)
	require.Equal(t, "Hello world!", last.Text)
	require.Equal(t, []string{"Hello ", "world!"}, tokens)
	require.Equal(t, []string{"test-123"}, sessions)

	out := run.Wait()
	require.Equal(t, process.Completed, out.Kind)
	require.Equal(t, "test-123", out.SessionID)

	require.Equal(t, []string{
		"--print", "--output-format", "stream-json", "--verbose", "--dangerously-skip-permissions", "--", "greet",
	}, testutil.ReadArgs(t, cli))
}

func TestStream_FailureReasonFromExit(t *testing.T) {
	cli := testutil.FakeCLI(t, `echo "API Error" >&2; exit 1`)
	c := New(Options{ExecutablePath: cli})

	run, err := c.Stream(context.Background(), Text("x"), "")
	require.NoError(t, err)

	out := run.Wait()
	require.Equal(t, process.Failed, out.Kind)
	require.EqualError(t, out.Err, "claude CLI exited with code 1: API Error")
}

func TestStream_ResumeFlag(t *testing.T) {
	cli := testutil.FakeCLI(t, `printf '%s\n' "$@" > "$DIR/args"`)
	c := New(Options{ExecutablePath: cli})

	run, err := c.Stream(context.Background(), Text("again"), "s-42")
	require.NoError(t, err)
	run.Wait()

	args := testutil.ReadArgs(t, cli)
	require.Contains(t, args, "--resume")
	require.Equal(t, "again", args[len(args)-1])
}
