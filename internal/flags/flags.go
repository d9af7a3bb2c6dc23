// Package flags provides feature flags read from the config file's flags
// section. Known flags carry a built-in default; unknown flags are off.
package flags

import (
	"maps"
	"slices"
	"strings"

	"github.com/zjrosen/claudecode/internal/log"
)

const (
	// FlagLogStream exposes the /logs/ws endpoint on the HTTP server.
	FlagLogStream = "log-stream"

	// FlagMarkdown renders completed answers as markdown with glamour.
	FlagMarkdown = "markdown"

	// FlagDiagnostics shows malformed-line diagnostics in the TUI when
	// claude.verbose is on.
	FlagDiagnostics = "stream-diagnostics"
)

// defaults apply when the config does not mention a known flag.
var defaults = map[string]bool{
	FlagLogStream:   false,
	FlagMarkdown:    true,
	FlagDiagnostics: false,
}

// Registry holds feature flag state. Read-only after New.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from the config map. Keys are matched
// case-insensitively since viper lowercases them.
func New(configured map[string]bool) *Registry {
	flags := maps.Clone(defaults)
	for name, value := range configured {
		flags[strings.ToLower(name)] = value
	}
	r := &Registry{flags: flags}
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(flags), "flags", r.All())
	return r
}

// Enabled reports whether the named flag is on. Unknown flags and a nil
// registry report false.
func (r *Registry) Enabled(name string) bool {
	if r == nil {
		return false
	}
	value, exists := r.flags[strings.ToLower(name)]
	if !exists {
		log.Debug(log.CatConfig, "Unknown flag accessed", "flag", name, "result", false)
		return false
	}
	return value
}

// All returns a copy of every flag, defaults included.
func (r *Registry) All() map[string]bool {
	if r == nil {
		return make(map[string]bool)
	}
	return maps.Clone(r.flags)
}

// Known returns the names of the built-in flags, sorted.
func Known() []string {
	return slices.Sorted(maps.Keys(defaults))
}
