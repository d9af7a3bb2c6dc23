package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/claudecode/internal/config"
	"github.com/zjrosen/claudecode/internal/flags"
	"github.com/zjrosen/claudecode/internal/log"
)

func init() {
	// Query the terminal background before any Bubble Tea program starts so
	// the OSC 11 reply does not race the input loop.
	_ = lipgloss.HasDarkBackground()
}

const localConfigPath = ".claudecode/config.yaml"

var (
	version    = "dev"
	cfgFile    string
	debugFlag  bool
	cfg        config.Config
	cfgErr     error
	featureSet *flags.Registry
	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "claudecode",
	Short: "Drive the claude CLI from the terminal, scripts and HTTP",
	Long: `claudecode wraps the claude CLI. It streams replies into an interactive
chat, answers one-shot prompts for scripts, keeps conversations in a local
database and serves the same engine over HTTP and WebSocket.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCleanup != nil {
			logCleanup()
		}
	},
	RunE: runTUI,
}

func init() {
	// Assigned here rather than in the literal: setup references rootCmd.
	rootCmd.PersistentPreRunE = setup
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/claudecode/config.yaml)")
	pf.BoolVarP(&debugFlag, "debug", "d", false,
		"write debug logs (path from CLAUDECODE_LOG, default debug.log)")
	pf.StringP("model", "m", "", "model alias or full name")
	pf.Bool("skip-permissions", false, "pass --dangerously-skip-permissions to claude")
	pf.Bool("verbose", false, "surface raw events and diagnostics")
	pf.String("claude-path", "", "path to the claude executable")
}

// bindFlags maps persistent flags onto config keys.
func bindFlags() {
	pf := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("claude.model", pf.Lookup("model"))
	_ = viper.BindPFlag("claude.skip_permissions", pf.Lookup("skip-permissions"))
	_ = viper.BindPFlag("claude.verbose", pf.Lookup("verbose"))
	_ = viper.BindPFlag("claude.executable_path", pf.Lookup("claude-path"))
}

func initConfig() {
	config.SetDefaults(viper.GetViper())
	bindFlags()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .claudecode/config.yaml (current directory)
		// 2. ~/.config/claudecode/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else if dir := config.DefaultConfigDir(); dir != "" {
			viper.AddConfigPath(dir)
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// First run: write the commented default to the user config dir.
			if dir := config.DefaultConfigDir(); dir != "" {
				defaultPath := filepath.Join(dir, "config.yaml")
				if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
					viper.SetConfigFile(defaultPath)
					_ = viper.ReadInConfig()
				}
			}
		} else {
			cfgErr = fmt.Errorf("reading config: %w", err)
			return
		}
	}

	cfg, cfgErr = config.Load(viper.GetViper())
	featureSet = flags.New(cfg.Flags)
}

// setup validates the loaded config and starts debug logging.
func setup(cmd *cobra.Command, _ []string) error {
	if cfgErr != nil {
		return cfgErr
	}

	debug := os.Getenv("CLAUDECODE_DEBUG") != "" || debugFlag
	if !debug && !featureSet.Enabled(flags.FlagLogStream) {
		return nil
	}

	logPath := os.Getenv("CLAUDECODE_LOG")
	if logPath == "" {
		logPath = "debug.log"
	}

	var err error
	if cmd.Name() == tuiCmd.Name() || cmd == rootCmd {
		logCleanup, err = log.InitWithTeaLog(logPath, "claudecode")
	} else {
		logCleanup, err = log.Init(logPath)
	}
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	log.Info(log.CatConfig, "claudecode starting",
		"version", version, "command", cmd.Name(), "config", viper.ConfigFileUsed())
	return nil
}

// configPath returns the file config edits should target.
func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	if cfgFile != "" {
		return cfgFile
	}
	return filepath.Join(config.DefaultConfigDir(), "config.yaml")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
