// Package templates holds files embedded into the binary.
package templates

import (
	"embed"
	"io/fs"
)

//go:embed config
var files embed.FS

// FS returns the embedded files.
func FS() fs.FS {
	return files
}

// DefaultConfig returns the commented config written on first run.
func DefaultConfig() string {
	data, err := files.ReadFile("config/default.yaml")
	if err != nil {
		panic("templates: default config missing: " + err.Error())
	}
	return string(data)
}
