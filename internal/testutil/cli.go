// Package testutil provides helpers for tests that drive a stand-in claude
// executable.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// FakeCLI writes an executable shell script standing in for the claude
// binary and returns its path. The script's directory is available as $DIR.
func FakeCLI(t testing.TB, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claude")
	script := "#!/bin/sh\nDIR=\"$(dirname \"$0\")\"\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// RecordArgs is a script line that saves the arguments for ReadArgs.
const RecordArgs = `printf '%s\n' "$@" > "$DIR/args"`

// ReadArgs returns the arguments saved by a script containing RecordArgs.
func ReadArgs(t testing.TB, cli string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(filepath.Dir(cli), "args"))
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}
