package process

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/claudecode/internal/testutil"
)

func TestExec_BuffersOutput(t *testing.T) {
	cli := testutil.FakeCLI(t, `
echo '[{"type":"system"},{"type":"result","result":"hi"}]'
echo "note" >&2
`)

	res, err := NewBuilder(context.Background()).WithExecutable(cli, []string{"--print"}).Exec()
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.JSONEq(t, `[{"type":"system"},{"type":"result","result":"hi"}]`, res.Stdout)
	require.Equal(t, "note", res.Stderr)
}

func TestExec_NonZeroExitIsNotAnError(t *testing.T) {
	cli := testutil.FakeCLI(t, `echo "bad flag" >&2; exit 2`)

	res, err := NewBuilder(context.Background()).WithExecutable(cli, nil).Exec()
	require.NoError(t, err)
	require.Equal(t, 2, res.ExitCode)
	require.Equal(t, "bad flag", res.Stderr)
}

func TestExec_PassesArguments(t *testing.T) {
	cli := testutil.FakeCLI(t, `printf '%s|' "$@"`)

	res, err := NewBuilder(context.Background()).
		WithExecutable(cli, []string{"--output-format", "json", "--", "-prompt with dash"}).
		Exec()
	require.NoError(t, err)
	require.Equal(t, "--output-format|json|--|-prompt with dash|", res.Stdout)
}

func TestExec_SpawnFailure(t *testing.T) {
	_, err := NewBuilder(context.Background()).WithExecutable("/nonexistent/claude", nil).Exec()

	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr))
	require.Equal(t, "/nonexistent/claude", spawnErr.Path)
}

func TestExec_Timeout(t *testing.T) {
	cli := testutil.FakeCLI(t, `sleep 30`)

	_, err := NewBuilder(context.Background()).
		WithExecutable(cli, nil).
		WithTimeout(100 * time.Millisecond).
		Exec()
	require.ErrorIs(t, err, ErrTimeout)
}

func TestExec_Cancelled(t *testing.T) {
	cli := testutil.FakeCLI(t, `sleep 30`)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := NewBuilder(ctx).WithExecutable(cli, nil).Exec()
	require.ErrorIs(t, err, ErrAborted)
}
