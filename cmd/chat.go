package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zjrosen/claudecode/internal/claude"
	"github.com/zjrosen/claudecode/internal/flags"
	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/process"
	"github.com/zjrosen/claudecode/internal/protocol"
	"github.com/zjrosen/claudecode/internal/session"
	"github.com/zjrosen/claudecode/internal/ui/markdown"
)

var errNoPrompt = errors.New("no prompt given: pass it as arguments or on stdin")

var chatCmd = &cobra.Command{
	Use:   "chat [prompt...]",
	Short: "Send one prompt and print the reply",
	Long: `Send a prompt to claude and print the reply. The prompt is taken from the
arguments, or from stdin when no arguments are given.

Replies stream by default. --no-stream waits for the full answer and
renders it as markdown on a terminal. --json prints the result document.

Example:
  claudecode chat "explain this stack trace" < trace.txt
  claudecode chat --resume 3f1c... "and the second frame?"
  git diff | claudecode chat --json "review this diff"`,
	RunE: runChat,
}

var (
	chatNoStream     bool
	chatJSON         bool
	chatResume       string
	chatSystemPrompt string
	chatAppendPrompt string
	chatNoSave       bool
)

func init() {
	rootCmd.AddCommand(chatCmd)

	f := chatCmd.Flags()
	f.BoolVar(&chatNoStream, "no-stream", false, "wait for the complete reply")
	f.BoolVar(&chatJSON, "json", false, "print the result document as JSON (implies --no-stream)")
	f.StringVarP(&chatResume, "resume", "r", "", "continue a stored conversation by id")
	f.StringVar(&chatSystemPrompt, "system-prompt", "", "replace the system prompt")
	f.StringVar(&chatAppendPrompt, "append-system-prompt", "", "append to the system prompt")
	f.BoolVar(&chatNoSave, "no-save", false, "do not store the conversation")
}

func runChat(cmd *cobra.Command, args []string) error {
	text, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newEngine(cfg, !chatNoSave)
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.newSession(ctx, chatResume)
	if err != nil {
		return err
	}
	defer sess.Wait()

	p := claude.Prompt{Text: text, SystemPrompt: chatSystemPrompt, AppendSystemPrompt: chatAppendPrompt}
	out := cmd.OutOrStdout()
	errOut := termenv.NewOutput(cmd.ErrOrStderr())

	switch {
	case chatJSON:
		err = promptJSON(ctx, sess, p, out)
	case chatNoStream:
		err = promptRendered(ctx, sess, p, out)
	default:
		err = promptStream(ctx, sess, p, out, errOut)
	}
	if err != nil {
		return err
	}

	if e.store() != nil && isTerminal(cmd.ErrOrStderr()) {
		fmt.Fprintln(errOut, errOut.String("conversation "+sess.GUID()).Faint())
	}
	return nil
}

// readPrompt joins args, falling back to stdin when it is not a terminal.
func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	if isTerminal(stdin) {
		return "", errNoPrompt
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading prompt: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errNoPrompt
	}
	return text, nil
}

func promptJSON(ctx context.Context, sess *session.Session, p claude.Prompt, out io.Writer) error {
	msg, err := sess.Prompt(ctx, p)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(msg); err != nil {
		return err
	}
	if msg.IsError {
		return fmt.Errorf("claude reported an error: %s", msg.Result)
	}
	return nil
}

func promptRendered(ctx context.Context, sess *session.Session, p claude.Prompt, out io.Writer) error {
	msg, err := sess.Prompt(ctx, p)
	if err != nil {
		return err
	}
	if msg.IsError {
		return fmt.Errorf("claude reported an error: %s", msg.Result)
	}
	fmt.Fprintln(out, renderMarkdown(msg.Result, out))
	return nil
}

// renderMarkdown renders text through glamour when out is a terminal and
// markdown is enabled.
func renderMarkdown(text string, out io.Writer) string {
	if !featureSet.Enabled(flags.FlagMarkdown) || !isTerminal(out) {
		return text
	}
	width := cfg.UI.WrapWidth
	if width <= 0 {
		width = terminalWidth(out)
	}
	r, err := markdown.New(cfg.UI.MarkdownStyle, width)
	if err != nil {
		log.ErrorErr(log.CatUI, "markdown renderer unavailable", err)
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return rendered
}

func promptStream(ctx context.Context, sess *session.Session, p claude.Prompt, out io.Writer, errOut *termenv.Output) error {
	run, err := sess.Stream(ctx, p)
	if err != nil {
		return err
	}
	defer run.Close()

	var streamed bool
	var failure error
	handlers := protocol.Handlers{
		OnToken: func(s string) {
			streamed = true
			fmt.Fprint(out, s)
		},
		OnComplete: func(text, _ string) {
			if !streamed {
				fmt.Fprint(out, text)
			}
			fmt.Fprintln(out)
		},
		OnError: func(err error) {
			failure = err
		},
		OnAborted: func() {
			failure = process.ErrAborted
		},
	}
	if featureSet.Enabled(flags.FlagDiagnostics) {
		handlers.OnDiagnostic = func(line string, err error) {
			msg := line
			if err != nil {
				msg = fmt.Sprintf("%s (%v)", line, err)
			}
			fmt.Fprintln(errOut, errOut.String(msg).Faint())
		}
	}

	if _, ok := handlers.Consume(run.Notifications()); !ok {
		return errors.New("stream ended without a result")
	}
	if failure != nil {
		if streamed {
			fmt.Fprintln(out)
		}
		return failure
	}
	return nil
}

func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth(v any) int {
	const fallback = 80
	f, ok := v.(interface{ Fd() uintptr })
	if !ok {
		return fallback
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}
