package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"github.com/spf13/cobra"

	"github.com/zjrosen/claudecode/internal/flags"
	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/session"
	"github.com/zjrosen/claudecode/internal/ui/chat"
)

var tuiResume string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive chat",
	Long: `Open a full-screen chat. Replies stream as they arrive, esc aborts the
current reply and every follow-up continues the same conversation.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().StringVarP(&tuiResume, "resume", "r", "", "continue a stored conversation by id")
	rootCmd.Flags().StringVarP(&tuiResume, "resume", "r", "", "continue a stored conversation by id")
}

func runTUI(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e, err := newEngine(cfg, true)
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.newSession(ctx, tuiResume)
	if err != nil {
		return err
	}

	var sessions []*session.Session
	sessions = append(sessions, sess)
	defer func() {
		for _, s := range sessions {
			s.Wait()
		}
	}()

	zone.NewGlobal()
	model := chat.New(ctx, sess, chat.Config{
		Markdown:      featureSet.Enabled(flags.FlagMarkdown),
		MarkdownStyle: cfg.UI.MarkdownStyle,
		ShowStatusBar: cfg.UI.ShowStatusBar,
		WrapWidth:     cfg.UI.WrapWidth,
		Diagnostics:   featureSet.Enabled(flags.FlagDiagnostics),
		Model:         cfg.Claude.Model,
		Logs:          log.Subscribe(ctx),
		NewSession: func() *session.Session {
			s := session.New(e.client, e.sessionOptions()...)
			sessions = append(sessions, s)
			return s
		},
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}
