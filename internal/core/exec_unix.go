//go:build !windows

package core

import (
	"errors"
	"log/slog"
	"os/exec"
	"syscall"
)

// The script runs in its own process group so a timeout also stops anything
// it spawned.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

// terminateGroup kills whatever is left of the script's process group once
// the script itself has been waited for.
func terminateGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	if err == nil {
		slog.Warn("killed processes left behind by script", "pgid", cmd.Process.Pid)
	} else if !errors.Is(err, syscall.ESRCH) {
		slog.Warn("error killing script process group", "pgid", cmd.Process.Pid, "error", err)
	}
}
