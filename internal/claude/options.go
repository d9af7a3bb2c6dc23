package claude

import "time"

// DefaultExecutable is invoked when Options.ExecutablePath is empty.
const DefaultExecutable = "claude"

// Options configures how the CLI is invoked. Options are immutable per run;
// SetOptions affects later calls only.
type Options struct {
	// ExecutablePath is the claude binary. Defaults to "claude" on PATH.
	ExecutablePath string
	// WorkingDirectory is the child's cwd. Empty inherits ours.
	WorkingDirectory string
	// Model is passed as --model when set.
	Model string
	// Verbose enables debug/diagnostic notifications and extra logging.
	Verbose bool
	// SkipPermissions passes --dangerously-skip-permissions.
	SkipPermissions bool
	// APIKey is injected as ANTHROPIC_API_KEY.
	APIKey string
	// Timeout bounds each invocation. Zero means none.
	Timeout time.Duration
	// AbortGrace is how long an aborted child gets before SIGKILL.
	AbortGrace time.Duration
}

// Merge returns o with every non-zero field of patch applied. Booleans can
// only be switched on.
func (o Options) Merge(patch Options) Options {
	if patch.ExecutablePath != "" {
		o.ExecutablePath = patch.ExecutablePath
	}
	if patch.WorkingDirectory != "" {
		o.WorkingDirectory = patch.WorkingDirectory
	}
	if patch.Model != "" {
		o.Model = patch.Model
	}
	if patch.Verbose {
		o.Verbose = true
	}
	if patch.SkipPermissions {
		o.SkipPermissions = true
	}
	if patch.APIKey != "" {
		o.APIKey = patch.APIKey
	}
	if patch.Timeout != 0 {
		o.Timeout = patch.Timeout
	}
	if patch.AbortGrace != 0 {
		o.AbortGrace = patch.AbortGrace
	}
	return o
}

func (o Options) executable() string {
	if o.ExecutablePath == "" {
		return DefaultExecutable
	}
	return o.ExecutablePath
}

func (o Options) env() []string {
	if o.APIKey == "" {
		return nil
	}
	return []string{"ANTHROPIC_API_KEY=" + o.APIKey}
}

// Prompt is one user turn.
type Prompt struct {
	Text string
	// SystemPrompt replaces the default system prompt.
	SystemPrompt string
	// AppendSystemPrompt is appended to the default system prompt.
	AppendSystemPrompt string
}

// Text is shorthand for a Prompt with only text.
func Text(s string) Prompt {
	return Prompt{Text: s}
}
