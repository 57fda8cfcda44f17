//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
)

// setNewProcessGroup starts the child as the leader of its own process
// group so that any helper it forks can be killed with it.
func setNewProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup kills the child and every process in its group.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
