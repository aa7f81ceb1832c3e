//go:build windows

package dispatch

import (
	"os/exec"
	"syscall"
)

const (
	detachedProcess       = 0x00000008
	createNewConsole      = 0x00000010
	createNewProcessGroup = 0x00000200
)

func detach(cmd *exec.Cmd, newConsole bool) {
	flags := uint32(createNewProcessGroup)
	if newConsole {
		flags |= createNewConsole
	} else {
		flags |= detachedProcess
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: flags}
}
