//go:build windows

package streaming

import (
	"fmt"
	"os/exec"
)

func setPlatformProcessGroup(cmd *exec.Cmd) {}

// terminateProcess is a no-op; closing stdin already ends FFmpeg
func terminateProcess(cmd *exec.Cmd) {}

// killProcess uses taskkill to remove the process tree
func killProcess(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	kill := exec.Command("taskkill", "/F", "/T", "/PID", fmt.Sprintf("%d", cmd.Process.Pid))
	if err := kill.Run(); err != nil {
		cmd.Process.Kill()
	}
}

// audioPipeSupported is false: ExtraFiles are not supported on Windows
func audioPipeSupported() bool {
	return false
}
