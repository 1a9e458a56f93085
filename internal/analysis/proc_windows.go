//go:build windows

package analysis

import (
	"os/exec"
)

func setupProcessGroup(cmd *exec.Cmd) {}

func reapProcessGroup(pid int) {}

// killProcessGroup kills the engine process. Windows has no process groups
// in the unix sense; helper processes are not reached.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
