package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/claudecode/internal/paths"
	"github.com/zjrosen/claudecode/internal/session"
	"github.com/zjrosen/claudecode/internal/ui/styles"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"s"},
	Short:   "Manage stored conversations",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored conversations, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print every turn of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation and its turns",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var (
	sessionsLimit   int
	sessionsProject string
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)

	sessionsListCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "maximum conversations to list (0 = all)")
	sessionsListCmd.Flags().StringVarP(&sessionsProject, "project", "p", "", "only conversations from the project containing this directory")
}

var errStorageDisabled = errors.New("conversation storage is disabled (storage.enabled: false)")

func openStore() (*engine, session.Store, error) {
	e, err := newEngine(cfg, true)
	if err != nil {
		return nil, nil, err
	}
	s := e.store()
	if s == nil {
		e.Close()
		return nil, nil, errStorageDisabled
	}
	return e, s, nil
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	e, store, err := openStore()
	if err != nil {
		return err
	}
	defer e.Close()

	project := sessionsProject
	if project != "" {
		project = paths.ProjectRoot(project)
	}
	recs, err := store.List(cmd.Context(), session.ListFilter{Project: project, Limit: sessionsLimit})
	if err != nil {
		return err
	}
	writeSessionTable(cmd.OutOrStdout(), recs, time.Now())
	return nil
}

const (
	colGUID  = 36
	colTitle = 40
	colTurns = 5
	colAge   = 9
)

func writeSessionTable(w io.Writer, recs []*session.Record, now time.Time) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No conversations stored.")
		return
	}
	fmt.Fprintln(w, strings.Join([]string{
		styles.PadRight("ID", colGUID),
		styles.PadRight("TITLE", colTitle),
		styles.PadRight("TURNS", colTurns),
		styles.PadRight("UPDATED", colAge),
		"MODEL",
	}, "  "))
	for _, r := range recs {
		model := r.Model
		if model == "" {
			model = "-"
		}
		fmt.Fprintln(w, strings.Join([]string{
			styles.PadRight(r.GUID, colGUID),
			styles.PadRight(styles.TruncateString(r.Title, colTitle), colTitle),
			styles.PadRight(fmt.Sprint(r.TurnCount), colTurns),
			styles.PadRight(styles.FormatAge(r.UpdatedAt, now), colAge),
			model,
		}, "  "))
	}
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	e, store, err := openStore()
	if err != nil {
		return err
	}
	defer e.Close()

	rec, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s\n", rec.GUID, rec.Title)
	if rec.Project != "" {
		fmt.Fprintf(out, "project: %s\n", rec.Project)
	}
	for _, t := range rec.Turns {
		fmt.Fprintf(out, "\n── turn %d · %s · %s ──\n", t.Seq, t.CreatedAt.Format(time.DateTime), styles.FormatCost(t.CostUSD))
		fmt.Fprintf(out, "> %s\n\n", t.Prompt)
		fmt.Fprintln(out, renderMarkdown(t.Response, out))
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	e, store, err := openStore()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}
