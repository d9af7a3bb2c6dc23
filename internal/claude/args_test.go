package claude

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildArgs_JSONMinimal(t *testing.T) {
	args := buildArgs(Options{}, FormatJSON, Text("hello"), "")

	require.Equal(t, []string{"--print", "--output-format", "json", "--", "hello"}, args)
}

func TestBuildArgs_StreamAddsVerbose(t *testing.T) {
	args := buildArgs(Options{}, FormatStreamJSON, Text("hi"), "")

	require.Equal(t, []string{"--print", "--output-format", "stream-json", "--verbose", "--", "hi"}, args)
}

func TestBuildArgs_AllOptions(t *testing.T) {
	o := Options{Model: "sonnet", SkipPermissions: true}
	p := Prompt{Text: "-starts with dash", SystemPrompt: "be terse", AppendSystemPrompt: "use go"}

	args := buildArgs(o, FormatJSON, p, "sess-1")

	require.Equal(t, []string{
		"--print", "--output-format", "json",
		"--model", "sonnet",
		"--dangerously-skip-permissions",
		"--system-prompt", "be terse",
		"--append-system-prompt", "use go",
		"--resume", "sess-1",
		"--", "-starts with dash",
	}, args)
}

func TestOptions_Merge(t *testing.T) {
	base := Options{ExecutablePath: "/usr/bin/claude", Model: "opus", Verbose: true}

	merged := base.Merge(Options{Model: "sonnet", APIKey: "k"})

	require.Equal(t, "/usr/bin/claude", merged.ExecutablePath)
	require.Equal(t, "sonnet", merged.Model)
	require.Equal(t, "k", merged.APIKey)
	require.True(t, merged.Verbose, "false in a patch does not switch a flag off")
}

func TestClient_SetOptionsReturnsCopy(t *testing.T) {
	c := New(Options{Model: "opus"})
	c.SetOptions(Options{WorkingDirectory: "/tmp"})

	got := c.Options()
	got.Model = "mutated"

	require.Equal(t, "opus", c.Options().Model)
	require.Equal(t, "/tmp", c.Options().WorkingDirectory)
}

func TestOptions_DefaultExecutableAndEnv(t *testing.T) {
	require.Equal(t, "claude", Options{}.executable())
	require.Nil(t, Options{}.env())
	require.Equal(t, []string{"ANTHROPIC_API_KEY=sk"}, Options{APIKey: "sk"}.env())
}
