//go:build windows

// Package procattr configures child processes so the whole process tree can
// be signalled and does not outlive the parent.
package procattr

import (
	"os"
	"os/exec"
)

// Set is a no-op on Windows.
func Set(cmd *exec.Cmd) {}

// Terminate kills p; Windows has no SIGTERM.
func Terminate(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}

// Kill kills p.
func Kill(p *os.Process) error {
	return Terminate(p)
}
