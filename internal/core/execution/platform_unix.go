//go:build !windows

package execution

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// shellCommand runs line through the POSIX shell.
func shellCommand(ctx context.Context, line string) *exec.Cmd {
	return exec.CommandContext(ctx, "/bin/sh", "-c", line)
}

// setupProcessGroup configures the command to run in its own process group
// so that pipelines and their children die together.
func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// killProcessGroup kills the process and all its children.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid > 0 {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// cdCommand changes directory and prints the result.
func cdCommand(args string) string {
	return "cd " + args + " && pwd"
}

// monitorCommands maps monitoring aliases to host commands.
var monitorCommands = map[string]string{
	"cpu":    "top -b -n 1 | head -n 15",
	"mem":    "free -h",
	"ps":     "ps aux",
	"disk":   "df -h",
	"uptime": "uptime",
	"top":    "top -b -n 1",
}
