//go:build unix

package dispatch

import (
	"os/exec"
	"syscall"
)

// detach starts the child in a new session so it survives termgrid exiting
// and does not receive signals aimed at termgrid's terminal.
func detach(cmd *exec.Cmd, _ bool) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
