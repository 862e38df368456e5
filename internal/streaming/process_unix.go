//go:build !windows

package streaming

import (
	"os/exec"
	"syscall"
)

// setPlatformProcessGroup puts FFmpeg in its own process group so the whole
// tree can be signalled and a Ctrl-C in the terminal doesn't reach it first
func setPlatformProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcess asks the group to finish; FFmpeg finalizes the container on SIGTERM
func terminateProcess(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM); err != nil {
		cmd.Process.Signal(syscall.SIGTERM)
	}
}

// killProcess force-kills the group
func killProcess(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		cmd.Process.Kill()
	}
}

// audioPipeSupported reports whether FFmpeg can read audio from fd 3
func audioPipeSupported() bool {
	return true
}
