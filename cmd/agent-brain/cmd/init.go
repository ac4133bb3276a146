package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agent-brain/brain/configs"
	"github.com/agent-brain/brain/internal/config"
	"github.com/agent-brain/brain/internal/embed"
	"github.com/agent-brain/brain/internal/lifecycle"
	"github.com/agent-brain/brain/internal/output"
	"github.com/agent-brain/brain/internal/preflight"
)

func newInitCmd() *cobra.Command {
	var (
		global  bool
		force   bool
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize agent-brain for the current project",
		Long: `Initialize agent-brain for a project: writes an agent-brain.yaml
configuration template, adds the state directory to .gitignore, and
verifies the embedding provider is reachable (unless --offline).

This does not start the server or index anything — run 'agent-brain
start' and 'agent-brain index <folder>' afterward.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runInit(ctx, cmd, global, force, offline)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Write the user-scope config instead of the project one")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the embedding provider check (static embeddings only)")

	return cmd
}

func runInit(ctx context.Context, cmd *cobra.Command, global, force, offline bool) error {
	out := output.New(cmd.OutOrStdout())

	if global {
		path := config.GetUserConfigPath()
		return writeTemplate(out, path, configs.UserConfigTemplate, force)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return failureError("get current directory: %v", err)
	}
	root, err := config.FindProjectRoot(cwd)
	if err != nil {
		root = cwd
	}
	out.Status("", fmt.Sprintf("project: %s", root))

	checker := preflight.New(preflight.WithOffline(offline), preflight.WithOutput(cmd.OutOrStdout()))
	results := checker.RunAll(ctx, root)
	checker.PrintResults(results)
	if checker.HasCriticalFailures(results) {
		return failureError("preflight checks failed, fix the issues above and re-run 'agent-brain init'")
	}

	yamlPath := filepath.Join(root, "agent-brain.yaml")
	if err := writeTemplate(out, yamlPath, configs.ProjectConfigTemplate, force); err != nil {
		return err
	}

	added, err := ensureStateDirIgnored(root)
	if err != nil {
		out.Warningf("could not update .gitignore: %v", err)
	} else if added {
		out.Status("", "added .claude/agent-brain/ to .gitignore")
	}

	if !offline {
		if err := checkEmbedderReady(ctx, out, cmd.OutOrStdout()); err != nil {
			return failureError("%v", err)
		}
	}

	out.Success("agent-brain initialized")
	out.Status("", "next: run 'agent-brain start' then 'agent-brain index <folder>'")
	return nil
}

func writeTemplate(out *output.Writer, path, content string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			out.Status("", fmt.Sprintf("%s already exists, leaving it alone (use --force to overwrite)", path))
			return nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return failureError("create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return failureError("write %s: %v", path, err)
	}
	out.Success(fmt.Sprintf("wrote %s", path))
	return nil
}

// ensureStateDirIgnored adds the project's state directory to .gitignore
// if it isn't already covered. Returns (true, nil) if a line was added.
func ensureStateDirIgnored(root string) (bool, error) {
	entry := ".claude/agent-brain/"
	gitignorePath := filepath.Join(root, ".gitignore")

	content, err := os.ReadFile(gitignorePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if bytes.Contains(content, []byte(entry)) || bytes.Contains(content, []byte(".claude/agent-brain")) {
		return false, nil
	}

	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		content = append(content, '\n')
	}
	content = append(content, []byte(entry+"\n")...)

	if err := os.WriteFile(gitignorePath, content, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// checkEmbedderReady verifies the configured embedding provider is
// reachable, auto-starting a local Ollama and pulling its model when
// that's the configured provider, grounded on lifecycle.OllamaManager's
// status/start/pull flow.
func checkEmbedderReady(ctx context.Context, out *output.Writer, w io.Writer) error {
	cfg := config.NewConfig()
	if cfg.Embedding.Provider != "ollama" {
		out.Status("", fmt.Sprintf("embedding provider: %s", cfg.Embedding.Provider))
		return nil
	}

	manager := lifecycle.NewOllamaManager()
	model := cfg.Embedding.Model
	if model == "" {
		model = embed.DefaultOllamaModel
	}

	if manager.IsRemoteHost() {
		running, err := manager.IsRunning()
		if err != nil {
			return fmt.Errorf("check remote ollama: %w", err)
		}
		if !running {
			return fmt.Errorf("remote ollama at %s is not responding", manager.Host())
		}
		out.Success("remote ollama is reachable")
		return nil
	}

	status, err := manager.Status(ctx, model)
	if err != nil {
		return fmt.Errorf("check ollama status: %w", err)
	}

	if !status.Installed {
		return fmt.Errorf("ollama is not installed; %s (or re-run with --offline)", lifecycle.InstallInstructions())
	}

	if !status.Running {
		out.Status("", "starting ollama...")
		if err := manager.Start(); err != nil {
			return fmt.Errorf("start ollama: %w", err)
		}
		if err := manager.WaitForReady(ctx, lifecycle.StartupTimeout); err != nil {
			return fmt.Errorf("ollama did not become ready: %w", err)
		}
	}

	if status, err = manager.Status(ctx, model); err == nil && !status.HasModel {
		out.Status("", fmt.Sprintf("pulling embedding model %s...", model))
		progress := lifecycle.CreatePullProgressFunc(w)
		if err := manager.PullModel(ctx, model, progress); err != nil {
			return fmt.Errorf("pull model %s: %w", model, err)
		}
		out.Newline()
	}

	out.Success("embedder ready")
	return nil
}
