// Package config provides configuration types, defaults, and validation
// for claudecode.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/zjrosen/claudecode/internal/auth"
	"github.com/zjrosen/claudecode/internal/claude"
	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/templates"
	"github.com/zjrosen/claudecode/internal/tracing"
)

// Config holds all configuration options for claudecode.
type Config struct {
	Claude  ClaudeConfig    `mapstructure:"claude"`
	OAuth   OAuthConfig     `mapstructure:"oauth"`
	Storage StorageConfig   `mapstructure:"storage"`
	Tracing tracing.Config  `mapstructure:"tracing"`
	Server  ServerConfig    `mapstructure:"server"`
	UI      UIConfig        `mapstructure:"ui"`
	Flags   map[string]bool `mapstructure:"flags"`
}

// ClaudeConfig controls how the claude CLI is invoked.
type ClaudeConfig struct {
	ExecutablePath   string        `mapstructure:"executable_path"`
	WorkingDirectory string        `mapstructure:"working_directory"`
	Model            string        `mapstructure:"model"` // sonnet, opus, haiku or a full model name
	Verbose          bool          `mapstructure:"verbose"`
	SkipPermissions  bool          `mapstructure:"skip_permissions"`
	APIKey           string        `mapstructure:"api_key"`
	Timeout          time.Duration `mapstructure:"timeout"`     // 0 = no limit
	AbortGrace       time.Duration `mapstructure:"abort_grace"` // SIGTERM to SIGKILL delay
}

// Options converts the section to client options.
func (c ClaudeConfig) Options() claude.Options {
	return claude.Options{
		ExecutablePath:   c.ExecutablePath,
		WorkingDirectory: c.WorkingDirectory,
		Model:            c.Model,
		Verbose:          c.Verbose,
		SkipPermissions:  c.SkipPermissions,
		APIKey:           c.APIKey,
		Timeout:          c.Timeout,
		AbortGrace:       c.AbortGrace,
	}
}

// OAuthConfig configures token refresh after auth failures.
type OAuthConfig struct {
	// Enabled turns on refresh-and-retry for Chat.
	Enabled bool `mapstructure:"enabled"`

	// CredentialsPath defaults to ~/.claude/.credentials.json.
	CredentialsPath string `mapstructure:"credentials_path"`

	TokenURL string `mapstructure:"token_url"`
	ClientID string `mapstructure:"client_id"`

	// Seed credentials are written when the credentials file is missing.
	AccessToken  string `mapstructure:"access_token"`
	RefreshToken string `mapstructure:"refresh_token"`
	ExpiresAt    int64  `mapstructure:"expires_at"` // Unix milliseconds
}

// Seed returns the configured seed credentials.
func (o OAuthConfig) Seed() auth.Credentials {
	return auth.Credentials{
		AccessToken:  o.AccessToken,
		RefreshToken: o.RefreshToken,
		ExpiresAt:    o.ExpiresAt,
	}
}

// StorageConfig controls conversation persistence.
type StorageConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path is the SQLite file. Default: ~/.config/claudecode/sessions.db
	Path string `mapstructure:"path"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	// AllowedOrigins limits websocket upgrades. Empty allows same-origin only.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// UIConfig holds terminal rendering options.
type UIConfig struct {
	MarkdownStyle string `mapstructure:"markdown_style"` // "auto" (default), "dark", "light", "notty"
	ShowStatusBar bool   `mapstructure:"show_status_bar"`
	WrapWidth     int    `mapstructure:"wrap_width"` // 0 = terminal width
}

// DefaultConfigDir returns ~/.config/claudecode or "" if the home directory
// is unavailable.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "claudecode")
}

// DefaultStoragePath returns the default SQLite location.
func DefaultStoragePath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "sessions.db")
}

// DefaultTracesFilePath returns the default JSONL trace file.
func DefaultTracesFilePath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = DefaultTracesFilePath()
	return Config{
		Claude: ClaudeConfig{
			ExecutablePath: claude.DefaultExecutable,
			AbortGrace:     5 * time.Second,
		},
		OAuth: OAuthConfig{
			TokenURL: auth.DefaultTokenURL,
			ClientID: auth.DefaultClientID,
		},
		Storage: StorageConfig{
			Enabled: true,
			Path:    DefaultStoragePath(),
		},
		Tracing: tc,
		Server: ServerConfig{
			Addr:              "127.0.0.1:3000",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		UI: UIConfig{
			MarkdownStyle: "auto",
			ShowStatusBar: true,
		},
		Flags: map[string]bool{},
	}
}

// SetDefaults registers every default with v so that keys missing from the
// config file still unmarshal to their default.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("claude.executable_path", d.Claude.ExecutablePath)
	v.SetDefault("claude.working_directory", d.Claude.WorkingDirectory)
	v.SetDefault("claude.model", d.Claude.Model)
	v.SetDefault("claude.verbose", d.Claude.Verbose)
	v.SetDefault("claude.skip_permissions", d.Claude.SkipPermissions)
	v.SetDefault("claude.timeout", d.Claude.Timeout)
	v.SetDefault("claude.abort_grace", d.Claude.AbortGrace)
	v.SetDefault("oauth.enabled", d.OAuth.Enabled)
	v.SetDefault("oauth.token_url", d.OAuth.TokenURL)
	v.SetDefault("oauth.client_id", d.OAuth.ClientID)
	v.SetDefault("storage.enabled", d.Storage.Enabled)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_header_timeout", d.Server.ReadHeaderTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("ui.markdown_style", d.UI.MarkdownStyle)
	v.SetDefault("ui.show_status_bar", d.UI.ShowStatusBar)
	v.SetDefault("ui.wrap_width", d.UI.WrapWidth)
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Flags == nil {
		cfg.Flags = map[string]bool{}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	log.Debug(log.CatConfig, "config loaded", "file", v.ConfigFileUsed(), "model", cfg.Claude.Model)
	return cfg, nil
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if err := ValidateClaude(c.Claude); err != nil {
		return err
	}
	if err := ValidateStorage(c.Storage); err != nil {
		return err
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	return ValidateUI(c.UI)
}

// ValidateClaude checks the claude section.
func ValidateClaude(c ClaudeConfig) error {
	if c.Timeout < 0 {
		return fmt.Errorf("claude.timeout must not be negative, got %s", c.Timeout)
	}
	if c.AbortGrace < 0 {
		return fmt.Errorf("claude.abort_grace must not be negative, got %s", c.AbortGrace)
	}
	if c.WorkingDirectory != "" {
		info, err := os.Stat(c.WorkingDirectory)
		if err != nil {
			return fmt.Errorf("claude.working_directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("claude.working_directory %q is not a directory", c.WorkingDirectory)
		}
	}
	return nil
}

// ValidateStorage checks the storage section. Empty values use defaults.
func ValidateStorage(s StorageConfig) error {
	if s.Enabled && s.Path != "" && !filepath.IsAbs(s.Path) {
		return fmt.Errorf("storage.path must be an absolute path, got %q", s.Path)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tc tracing.Config) error {
	if tc.SampleRate < 0.0 || tc.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tc.SampleRate)
	}

	if tc.Exporter != "" {
		switch tc.Exporter {
		case tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tc.Exporter)
		}
	}

	if tc.Enabled {
		if tc.Exporter == tracing.ExporterFile && tc.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tc.Exporter == tracing.ExporterOTLP && tc.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// ValidateUI checks the ui section.
func ValidateUI(u UIConfig) error {
	switch u.MarkdownStyle {
	case "", "auto", "dark", "light", "notty":
	default:
		return fmt.Errorf("ui.markdown_style must be \"auto\", \"dark\", \"light\", or \"notty\", got %q", u.MarkdownStyle)
	}
	if u.WrapWidth < 0 {
		return fmt.Errorf("ui.wrap_width must not be negative, got %d", u.WrapWidth)
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return templates.DefaultConfig()
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
