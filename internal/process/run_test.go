package process

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/claudecode/internal/protocol"
	"github.com/zjrosen/claudecode/internal/testutil"
)

func TestRun_EndToEnd(t *testing.T) {
	cli := testutil.FakeCLI(t, `
printf '%s\n' '{"text":"Hello "}'
printf '%s\n' '{"text":"world!"}'
printf '%s\n' '{"type":"result","subtype":"success","result":"Hello world!","session_id":"test-123"}'
`)

	run, err := NewBuilder(context.Background()).WithExecutable(cli, nil).Start()
	require.NoError(t, err)

	notes := collect(t, run.Notifications())
	out := run.Wait()

	require.Equal(t, []string{"Hello ", "world!"}, tokens(notes))
	require.Len(t, terminals(notes), 1)
	last := notes[len(notes)-1]
	require.Equal(t, protocol.NotifyComplete, last.Kind)
	require.Equal(t, "Hello world!", last.Text)
	require.Equal(t, "test-123", last.SessionID)

	require.Equal(t, Completed, out.Kind)
	require.Equal(t, "Hello world!", out.Text)
	require.Equal(t, "test-123", out.SessionID)
	require.Equal(t, 0, out.ExitCode)
	require.Equal(t, "test-123", run.SessionID())
	require.Equal(t, StatusCompleted, run.Status())
	require.NotEmpty(t, run.ID())
}

func TestRun_LineSplitAcrossWrites(t *testing.T) {
	cli := testutil.FakeCLI(t, `
printf '{"text":"Hel'
sleep 0.1
printf 'lo"}\n'
printf '%s\n' '{"type":"result","subtype":"success","result":"Hello"}'
`)

	run, err := NewBuilder(context.Background()).WithExecutable(cli, nil).Start()
	require.NoError(t, err)

	notes := collect(t, run.Notifications())
	require.Equal(t, []string{"Hello"}, tokens(notes))
	require.Equal(t, Completed, run.Wait().Kind)
}

func TestRun_NonZeroExitCarriesCodeAndStderr(t *testing.T) {
	cli := testutil.FakeCLI(t, `
printf '%s\n' '{"text":"partial"}'
echo "API Error" >&2
exit 3
`)

	run, err := NewBuilder(context.Background()).WithExecutable(cli, nil).WithName("claude CLI").Start()
	require.NoError(t, err)

	notes := collect(t, run.Notifications())
	out := run.Wait()

	require.Equal(t, Failed, out.Kind)
	require.Equal(t, 3, out.ExitCode)
	var exitErr *ExitError
	require.True(t, errors.As(out.Err, &exitErr))
	require.Equal(t, 3, exitErr.Code)
	require.Equal(t, "API Error", exitErr.Stderr)
	require.EqualError(t, out.Err, "claude CLI exited with code 3: API Error")

	last := notes[len(notes)-1]
	require.Equal(t, protocol.NotifyError, last.Kind)
	require.Equal(t, out.Err, last.Err)
}

func TestRun_ErrorResultFoldedIntoExitError(t *testing.T) {
	cli := testutil.FakeCLI(t, testutil.Stream(testutil.ErrorResult("Credit balance is too low"))+"exit 1\n")

	run, err := NewBuilder(context.Background()).WithExecutable(cli, nil).WithName("claude CLI").Start()
	require.NoError(t, err)

	notes := collect(t, run.Notifications())
	out := run.Wait()

	require.Equal(t, Failed, out.Kind)
	require.Equal(t, 1, out.ExitCode)
	require.EqualError(t, out.Err, "claude CLI exited with code 1: Credit balance is too low")

	var exitErr *ExitError
	require.True(t, errors.As(out.Err, &exitErr))
	require.Equal(t, 1, exitErr.Code)
	require.Empty(t, exitErr.Stderr)
	var streamErr *protocol.StreamError
	require.True(t, errors.As(out.Err, &streamErr))
	require.Equal(t, "Credit balance is too low", streamErr.Reason)

	require.Len(t, terminals(notes), 1)
	last := notes[len(notes)-1]
	require.Equal(t, protocol.NotifyError, last.Kind)
	require.Contains(t, last.Err.Error(), "Credit balance is too low")
}

func TestExitError_ReasonAndStderr(t *testing.T) {
	err := &ExitError{Name: "claude CLI", Code: 2, Stderr: "API Error", Reason: &protocol.StreamError{Reason: "overloaded"}}
	require.EqualError(t, err, "claude CLI exited with code 2: overloaded: API Error")

	bare := &ExitError{Name: "claude CLI", Code: 2, Stderr: "API Error"}
	require.EqualError(t, bare, "claude CLI exited with code 2: API Error")
	require.Nil(t, errors.Unwrap(bare))
}

func TestRun_ErrorEventFailsCleanExit(t *testing.T) {
	cli := testutil.FakeCLI(t, `
printf '%s\n' '{"type":"error","message":"overloaded"}'
printf '%s\n' '{"type":"error","message":"second"}'
`)

	run, err := NewBuilder(context.Background()).WithExecutable(cli, nil).Start()
	require.NoError(t, err)

	notes := collect(t, run.Notifications())
	out := run.Wait()

	require.Equal(t, Failed, out.Kind)
	var streamErr *protocol.StreamError
	require.True(t, errors.As(out.Err, &streamErr))
	require.Equal(t, "overloaded", streamErr.Reason)
	require.Len(t, terminals(notes), 1)
}

func TestRun_AbortWinsOverParsedResult(t *testing.T) {
	cli := testutil.FakeCLI(t, `
printf '%s\n' '{"text":"Hi"}'
printf '%s\n' '{"type":"result","subtype":"success","result":"Hi","session_id":"s-9"}'
sleep 30
`)

	run, err := NewBuilder(context.Background()).WithExecutable(cli, nil).Start()
	require.NoError(t, err)
	ch := run.Notifications()

	next(t, ch, protocol.NotifyToken)
	require.Eventually(t, func() bool { return run.SessionID() == "s-9" }, 5*time.Second, 10*time.Millisecond)

	start := time.Now()
	run.Abort()
	notes := collect(t, ch)
	out := run.Wait()

	require.Equal(t, Aborted, out.Kind)
	require.ErrorIs(t, out.Err, ErrAborted)
	require.Equal(t, "s-9", out.SessionID)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, terminals(notes), 1)
	require.Equal(t, protocol.NotifyAborted, notes[len(notes)-1].Kind)
	require.Equal(t, StatusAborted, run.Status())
}

func TestRun_AbortKillsAfterGrace(t *testing.T) {
	cli := testutil.FakeCLI(t, `
trap '' TERM
printf '%s\n' '{"text":"stubborn"}'
sleep 30
`)

	run, err := NewBuilder(context.Background()).
		WithExecutable(cli, nil).
		WithAbortGrace(200 * time.Millisecond).
		Start()
	require.NoError(t, err)
	ch := run.Notifications()
	next(t, ch, protocol.NotifyToken)

	start := time.Now()
	run.Abort()
	out := run.Wait()

	require.Equal(t, Aborted, out.Kind)
	require.Less(t, time.Since(start), 5*time.Second)
	collect(t, ch)
}

func TestRun_AbortSuppressesLaterTokens(t *testing.T) {
	cli := testutil.FakeCLI(t, `
trap 'printf "%s\n" "{\"text\":\"after abort\"}"; exit 0' TERM
printf '%s\n' '{"text":"before"}'
while true; do sleep 0.05; done
`)

	run, err := NewBuilder(context.Background()).WithExecutable(cli, nil).Start()
	require.NoError(t, err)
	ch := run.Notifications()
	next(t, ch, protocol.NotifyToken)

	run.Abort()
	notes := collect(t, ch)

	require.Empty(t, tokens(notes))
	require.Equal(t, []protocol.Notification{{Kind: protocol.NotifyAborted, Err: ErrAborted}}, notes)
}

func TestRun_ParentContextCancelAborts(t *testing.T) {
	cli := testutil.FakeCLI(t, `sleep 30`)
	ctx, cancel := context.WithCancel(context.Background())

	run, err := NewBuilder(ctx).WithExecutable(cli, nil).Start()
	require.NoError(t, err)

	cancel()
	require.Equal(t, Aborted, run.Wait().Kind)
}

func TestRun_CancelAfterCleanExitStaysCompleted(t *testing.T) {
	cli := testutil.FakeCLI(t, testutil.Stream(testutil.Result("done", "s-1")))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run, err := NewBuilder(ctx).WithExecutable(cli, nil).Start()
	require.NoError(t, err)
	require.Equal(t, Completed, run.Wait().Kind)

	// the child has already exited 0; a late cancel must not read as an abort
	cancel()
	out := run.classify(nil)
	require.Equal(t, Completed, out.Kind)
	require.Equal(t, "done", out.Text)
	require.NoError(t, out.Err)
}

func TestRun_Timeout(t *testing.T) {
	cli := testutil.FakeCLI(t, `sleep 30`)

	run, err := NewBuilder(context.Background()).
		WithExecutable(cli, nil).
		WithTimeout(100 * time.Millisecond).
		Start()
	require.NoError(t, err)

	out := run.Wait()
	require.Equal(t, Failed, out.Kind)
	require.ErrorIs(t, out.Err, ErrTimeout)
}

func TestRun_SpawnFailureResolvesImmediately(t *testing.T) {
	run, err := NewBuilder(context.Background()).
		WithExecutable("/nonexistent/claude-binary", nil).
		Start()
	require.NoError(t, err)

	select {
	case <-run.Done():
	default:
		require.Fail(t, "spawn failure should resolve before Start returns")
	}

	out := run.Wait()
	require.Equal(t, Failed, out.Kind)
	var spawnErr *SpawnError
	require.True(t, errors.As(out.Err, &spawnErr))
	require.Equal(t, -1, run.PID())

	notes := collect(t, run.Notifications())
	require.Len(t, notes, 1)
	require.Equal(t, protocol.NotifyError, notes[0].Kind)
}

func TestRun_ConstrainedEnvironmentAndNoStdin(t *testing.T) {
	cli := testutil.FakeCLI(t, `
n=$(cat | wc -c | tr -d ' ')
printf '{"text":"%s|%s|%s|%s|%s"}\n' "$CI" "$TERM" "$NO_COLOR" "$ANTHROPIC_API_KEY" "$n"
printf '%s\n' '{"type":"result","subtype":"success","result":""}'
`)

	run, err := NewBuilder(context.Background()).
		WithExecutable(cli, nil).
		WithEnv([]string{"ANTHROPIC_API_KEY=sk-test"}).
		Start()
	require.NoError(t, err)

	notes := collect(t, run.Notifications())
	require.Equal(t, []string{"true|dumb|1|sk-test|0"}, tokens(notes))

	// empty result text falls back to the streamed text
	require.Equal(t, "true|dumb|1|sk-test|0", run.Wait().Text)
}

func TestRun_WorkDir(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	cli := testutil.FakeCLI(t, `printf '{"text":"%s"}\n' "$(pwd -P)"`)

	run, err := NewBuilder(context.Background()).WithExecutable(cli, nil).WithWorkDir(dir).Start()
	require.NoError(t, err)

	out := run.Wait()
	require.Equal(t, Completed, out.Kind)
	require.Equal(t, dir, out.Text)
}

func TestRun_VerboseForwardsDebugAndDiagnostics(t *testing.T) {
	cli := testutil.FakeCLI(t, `
printf '%s\n' '{"type":"system","subtype":"hook"}'
printf '%s\n' 'warning: not json'
printf '%s\n' '{"type":"result","subtype":"success","result":"ok"}'
`)

	run, err := NewBuilder(context.Background()).WithExecutable(cli, nil).WithVerbose(true).Start()
	require.NoError(t, err)

	var kinds []protocol.NotificationKind
	for _, n := range collect(t, run.Notifications()) {
		kinds = append(kinds, n.Kind)
	}
	require.Equal(t, []protocol.NotificationKind{
		protocol.NotifyDebug,
		protocol.NotifyDiagnostic,
		protocol.NotifyComplete,
	}, kinds)
}

func TestRun_WaitWithoutReadingNotifications(t *testing.T) {
	cli := testutil.FakeCLI(t, `
i=0
while [ $i -lt 500 ]; do printf '{"text":"t%d "}\n' $i; i=$((i+1)); done
`)

	run, err := NewBuilder(context.Background()).WithExecutable(cli, nil).Start()
	require.NoError(t, err)
	defer run.Close()

	out := run.Wait()
	require.Equal(t, Completed, out.Kind)
	require.True(t, strings.HasPrefix(out.Text, "t0 t1 "))
}

func TestRun_CloseReleasesForwarder(t *testing.T) {
	cli := testutil.FakeCLI(t, `
printf '%s\n' '{"text":"a"}'
printf '%s\n' '{"text":"ab"}'
`)

	run, err := NewBuilder(context.Background()).WithExecutable(cli, nil).Start()
	require.NoError(t, err)
	ch := run.Notifications()
	<-run.Done()

	run.Close()
	run.Close()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 5*time.Millisecond)
}

func TestRun_AbortAfterResolutionIsNoop(t *testing.T) {
	cli := testutil.FakeCLI(t, `printf '%s\n' '{"type":"result","subtype":"success","result":"done"}'`)

	run, err := NewBuilder(context.Background()).WithExecutable(cli, nil).Start()
	require.NoError(t, err)

	require.Equal(t, Completed, run.Wait().Kind)
	run.Abort()
	require.Equal(t, Completed, run.Wait().Kind)
	require.Equal(t, StatusCompleted, run.Status())
}

func TestBuilder_RequiresExecutable(t *testing.T) {
	_, err := NewBuilder(context.Background()).Start()
	require.Error(t, err)

	_, err = NewBuilder(context.Background()).Exec()
	require.Error(t, err)
}
