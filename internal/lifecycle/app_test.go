package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agent-brain/brain/internal/config"
)

func testConfig(stateDir string) *config.Config {
	cfg := config.NewConfig()
	cfg.Project.StateDir = stateDir
	cfg.Server.LogLevel = "error"
	return cfg
}

func TestBuild_WiresAllCollaborators(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(".claude/agent-brain")

	app, err := Build(context.Background(), cfg, root)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	defer app.Shutdown(context.Background())

	if app.Backend == nil {
		t.Error("Backend not wired")
	}
	if app.Embedder == nil {
		t.Error("Embedder not wired")
	}
	if app.Queue == nil {
		t.Error("Queue not wired")
	}
	if app.GraphStore == nil {
		t.Error("GraphStore not wired (graph enabled by default)")
	}
	if app.Jobs == nil {
		t.Error("Jobs not wired")
	}
	if app.Worker == nil {
		t.Error("Worker not wired")
	}
	if app.Query == nil {
		t.Error("Query not wired")
	}

	stateDir := filepath.Join(root, ".claude", "agent-brain")
	if _, err := os.Stat(filepath.Join(stateDir, lockFile)); err != nil {
		t.Errorf("lock file not created: %v", err)
	}
}

func TestBuild_GraphDisabledLeavesGraphStoreNil(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(".claude/agent-brain")
	cfg.Graph.Enabled = false

	app, err := Build(context.Background(), cfg, root)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	defer app.Shutdown(context.Background())

	if app.GraphStore != nil {
		t.Error("GraphStore should be nil when graph is disabled")
	}
}

func TestBuild_SecondBuildFailsWhileFirstHoldsLock(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(".claude/agent-brain")

	app, err := Build(context.Background(), cfg, root)
	if err != nil {
		t.Fatalf("first Build() failed: %v", err)
	}
	defer app.Shutdown(context.Background())

	if _, err := Build(context.Background(), cfg, root); err == nil {
		t.Error("second Build() should fail while the first process holds the lock")
	}
}

func TestShutdown_RemovesLockAndDescriptor(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(".claude/agent-brain")
	stateDir := filepath.Join(root, ".claude", "agent-brain")

	app, err := Build(context.Background(), cfg, root)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	if err := app.Publish(app.Descriptor("127.0.0.1", 8000, os.Getpid(), "http://127.0.0.1:8000")); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	app.Shutdown(context.Background())

	if _, err := os.Stat(filepath.Join(stateDir, lockFile)); !os.IsNotExist(err) {
		t.Error("lock file should be removed after Shutdown()")
	}
	if _, ok, _ := ReadDescriptor(stateDir); ok {
		t.Error("runtime descriptor should be removed after Shutdown()")
	}
}
