package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/claudecode/internal/config"
	"github.com/zjrosen/claudecode/internal/flags"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the config file",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a dotted key in the config file, keeping comments",
	Example: `  claudecode config set claude.model opus
  claudecode config set flags.log-stream true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		before, _ := os.ReadFile(path) //nolint:gosec // user-chosen config file
		if err := config.SetValue(path, args[0], args[1]); err != nil {
			return err
		}
		after, err := os.ReadFile(path) //nolint:gosec // user-chosen config file
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Set %s = %s in %s\n", args[0], args[1], path)
		for _, line := range config.LineDiff(string(before), string(after)) {
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), configPath())
	},
}

var configFlagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "List feature flags and their state",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, name := range flags.Known() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s %v\n", name, featureSet.Enabled(name))
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd, configPathCmd, configFlagsCmd)
}
