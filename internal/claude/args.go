package claude

// Output formats passed to --output-format.
const (
	FormatJSON       = "json"
	FormatStreamJSON = "stream-json"
)

// buildArgs assembles the CLI arguments. The prompt always comes last,
// after "--", so prompt text starting with a dash is not read as a flag.
func buildArgs(o Options, format string, p Prompt, resumeID string) []string {
	args := []string{"--print", "--output-format", format}
	if format == FormatStreamJSON {
		// stream-json requires --verbose
		args = append(args, "--verbose")
	}
	if o.Model != "" {
		args = append(args, "--model", o.Model)
	}
	if o.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	if p.SystemPrompt != "" {
		args = append(args, "--system-prompt", p.SystemPrompt)
	}
	if p.AppendSystemPrompt != "" {
		args = append(args, "--append-system-prompt", p.AppendSystemPrompt)
	}
	if resumeID != "" {
		args = append(args, "--resume", resumeID)
	}
	return append(args, "--", p.Text)
}
