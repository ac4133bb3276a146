package cmd

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agent-brain/brain/internal/config"
	"github.com/agent-brain/brain/internal/lifecycle"
	"github.com/agent-brain/brain/internal/output"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running agent-brain server",
		Long:  `Send SIGTERM to the server process discovered for the current project, falling back to SIGKILL if it doesn't exit within the timeout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd)
		},
	}
}

func runStop(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	d, ok, err := lifecycle.DiscoverDescriptor(root)
	if err != nil {
		return failureError("read runtime descriptor: %v", err)
	}
	if !ok || !processRunning(d.PID) {
		out.Status("", "agent-brain is not running")
		return nil
	}

	proc, err := os.FindProcess(d.PID)
	if err != nil {
		return failureError("find process %d: %v", d.PID, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return failureError("signal process %d: %v", d.PID, err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !processRunning(d.PID) {
			out.Success(fmt.Sprintf("agent-brain stopped (was pid %d)", d.PID))
			return nil
		}
	}

	out.Status("", "server not responding, sending SIGKILL...")
	if err := proc.Signal(syscall.SIGKILL); err != nil {
		return failureError("kill process %d: %v", d.PID, err)
	}
	out.Success("agent-brain killed")
	return nil
}
