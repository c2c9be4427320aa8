//go:build windows

package execution

import (
	"context"
	"os/exec"
	"strconv"
	"syscall"
)

func shellCommand(ctx context.Context, line string) *exec.Cmd {
	return exec.CommandContext(ctx, "cmd", "/C", line)
}

func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}

// killProcessGroup terminates the process tree with taskkill.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid))
	if err := kill.Run(); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}

func cdCommand(args string) string {
	if args == "" {
		return "cd"
	}
	return "cd /D " + args + " && cd"
}

var monitorCommands = map[string]string{
	"cpu":    "wmic cpu get loadpercentage",
	"mem":    "systeminfo | findstr /C:\"Memory\"",
	"ps":     "tasklist",
	"disk":   "wmic logicaldisk get size,freespace,caption",
	"uptime": "net statistics workstation",
	"top":    "tasklist /FI \"STATUS eq running\"",
}
