package testutil

import (
	"encoding/json"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeCLI_RecordsArgs(t *testing.T) {
	cli := FakeCLI(t, RecordArgs+"\necho done")

	out, err := exec.Command(cli, "--print", "--", "hello world").Output()
	require.NoError(t, err)
	require.Equal(t, "done\n", string(out))
	require.Equal(t, []string{"--print", "--", "hello world"}, ReadArgs(t, cli))
}

func TestStream_PrintsOneEventPerLine(t *testing.T) {
	cli := FakeCLI(t, Stream(Init("s-1"), Text("hi"), Result("hi", "s-1")))

	out, err := exec.Command(cli).Output()
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		require.True(t, json.Valid([]byte(line)), line)
	}
	require.JSONEq(t, `{"type":"result","subtype":"success","result":"hi","session_id":"s-1"}`, lines[2])
}

func TestFailing(t *testing.T) {
	cli := FakeCLI(t, Failing("boom", 3))

	_, err := exec.Command(cli).Output()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 3, exitErr.ExitCode())
	require.Equal(t, "boom\n", string(exitErr.Stderr))
}

func TestMustJSON_RejectsSingleQuotes(t *testing.T) {
	require.Panics(t, func() { Text("it's") })
}
