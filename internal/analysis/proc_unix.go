//go:build !windows

package analysis

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"go.uber.org/zap"
)

// setupProcessGroup runs the engine in its own process group so helper
// processes it spawns are killed with it.
func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// killProcessGroup sends SIGKILL to the engine's process group, then to the
// process itself.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid > 0 {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	}

	if err := cmd.Process.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return os.ErrProcessDone
		}
		return err
	}
	return nil
}

// reapProcessGroup kills whatever is left of the group led by pid once the
// engine itself has exited. The group id equals the engine's pid because of
// Setpgid.
func reapProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		zap.L().Debug("engine: reap process group", zap.Int("pgid", pid), zap.Error(err))
	}
}
