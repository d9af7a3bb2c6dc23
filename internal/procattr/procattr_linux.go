//go:build linux

// Package procattr configures child processes so the whole process tree can
// be signalled and does not outlive the parent.
package procattr

import (
	"os/exec"
	"syscall"
)

// Set puts the child in its own process group and asks the kernel to
// SIGTERM it if this process dies first.
func Set(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
