package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print claudecode and claude CLI versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "claudecode %s\n", version)

		e, err := newEngine(cfg, false)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		v, err := e.client.Version(ctx)
		if err != nil {
			fmt.Fprintf(out, "claude CLI unavailable: %v\n", err)
			return nil
		}
		fmt.Fprintf(out, "claude CLI %s\n", v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
