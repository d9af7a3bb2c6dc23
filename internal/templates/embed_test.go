package templates

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig_IsValidYAML(t *testing.T) {
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(DefaultConfig()), &doc))

	for _, key := range []string{"claude", "oauth", "storage", "tracing", "server", "ui", "flags"} {
		require.Contains(t, doc, key)
	}
	claude, ok := doc["claude"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "claude", claude["executable_path"])
}

func TestFS_ListsConfig(t *testing.T) {
	matches, err := fs.Glob(FS(), "config/*.yaml")
	require.NoError(t, err)
	require.Equal(t, []string{"config/default.yaml"}, matches)
}
