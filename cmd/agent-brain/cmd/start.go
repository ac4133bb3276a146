package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agent-brain/brain/internal/config"
	"github.com/agent-brain/brain/internal/httpapi"
	"github.com/agent-brain/brain/internal/lifecycle"
	"github.com/agent-brain/brain/internal/output"
)

func newStartCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the agent-brain server",
		Long: `Start the HTTP server that owns the storage backend, job queue, and
worker for the current project.

By default it re-executes itself detached in the background. Use
--foreground to run inline (useful under a process supervisor or for
debugging).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if foreground {
				return runServeForeground(cmd.Context(), cmd)
			}
			return runStartBackground(cmd)
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run inline instead of detaching")
	return cmd
}

// runServeForeground builds the lifecycle.App, binds the HTTP server,
// publishes the runtime descriptor, and blocks until SIGINT/SIGTERM.
// Grounded on daemon.go's runDaemonStart foreground branch and
// daemon.Server's listen/serve/shutdown shape.
func runServeForeground(ctx context.Context, cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		return failureError("load config: %v", err)
	}

	app, err := lifecycle.Build(ctx, cfg, root)
	if err != nil {
		return failureError("start agent-brain: %v", err)
	}
	defer app.Shutdown(context.Background())

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := httpapi.New(app, addr)

	app.StartWorker(ctx)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe(sigCtx) }()

	// ListenAndServe binds the listener synchronously before accepting, but
	// doesn't report the bound address back until it returns; give it a
	// moment to bind before publishing the descriptor other processes will
	// read.
	time.Sleep(50 * time.Millisecond)

	host, portStr, splitErr := net.SplitHostPort(server.Addr())
	port := cfg.Server.Port
	if splitErr == nil {
		if p, perr := strconv.Atoi(portStr); perr == nil {
			port = p
		}
	} else {
		host = cfg.Server.Host
	}
	baseURL := fmt.Sprintf("http://%s:%d", host, port)

	if err := app.Publish(app.Descriptor(host, port, os.Getpid(), baseURL)); err != nil {
		out.Warningf("failed to publish runtime descriptor: %v", err)
	}

	out.Success(fmt.Sprintf("agent-brain listening on %s (pid %d)", baseURL, os.Getpid()))

	return <-serveErr
}

// runStartBackground re-executes the current binary with "start
// --foreground", detached via Setsid, then polls the runtime descriptor
// until the server reports itself ready. Grounded on daemon.go's
// background-start branch.
func runStartBackground(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	if _, err := config.Load(root); err != nil {
		return failureError("load config: %v", err)
	}

	if d, ok, _ := lifecycle.DiscoverDescriptor(root); ok {
		if processRunning(d.PID) {
			out.Status("", fmt.Sprintf("agent-brain is already running at %s (pid %d)", d.BaseURL, d.PID))
			return nil
		}
	}

	execPath, err := os.Executable()
	if err != nil {
		return failureError("resolve executable path: %v", err)
	}

	bgCmd := exec.Command(execPath, "start", "--foreground")
	bgCmd.Dir = root
	bgCmd.Stdout = nil
	bgCmd.Stderr = nil
	bgCmd.Stdin = nil
	bgCmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := bgCmd.Start(); err != nil {
		return failureError("start server process: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- bgCmd.Wait() }()

	for i := 0; i < 50; i++ {
		select {
		case err := <-done:
			if err != nil {
				return failureError("server process exited unexpectedly: %v", err)
			}
			return failureError("server process exited unexpectedly with code 0")
		default:
		}

		time.Sleep(100 * time.Millisecond)
		if d, ok, _ := lifecycle.DiscoverDescriptor(root); ok && d.PID == bgCmd.Process.Pid {
			out.Success(fmt.Sprintf("agent-brain started at %s (pid %d)", d.BaseURL, d.PID))
			return nil
		}
	}

	return failureError("server did not become ready within timeout")
}

func processRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
