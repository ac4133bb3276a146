package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/agent-brain/brain/internal/config"
	"github.com/agent-brain/brain/internal/embed"
	"github.com/agent-brain/brain/internal/graph"
	"github.com/agent-brain/brain/internal/jobservice"
	"github.com/agent-brain/brain/internal/logging"
	"github.com/agent-brain/brain/internal/query"
	"github.com/agent-brain/brain/internal/queue"
	"github.com/agent-brain/brain/internal/store"
	"github.com/agent-brain/brain/internal/summarize"
	"github.com/agent-brain/brain/internal/worker"
)

// App is the composition root: it owns every collaborator the server needs
// and their startup/shutdown order, per spec.md section 5's ownership
// rule — "the backend is the only mutator of its own storage files; the
// job store is the only mutator of the queue files; the graph store is
// the only mutator of the graph files. All three are initialized during
// startup and torn down during shutdown in reverse order." Grounded on
// internal/daemon.Server's build-then-serve-then-shutdown shape, retargeted
// at this package's store/queue/worker/jobservice/query stack instead of
// the teacher's coordinator/watcher pair.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Backend    store.Backend
	Embedder   embed.Embedder
	Summarizer summarize.Summarizer
	GraphStore graph.Store
	Queue      *queue.Store
	Jobs       *jobservice.Service
	Worker     *worker.Worker
	Query      *query.Service

	stateDir   string
	lock       *ProjectLock
	logCleanup func()
}

// Build constructs every collaborator in spec.md section 5's startup
// order (backend, then job queue, then graph store) and wires them into
// the job service, worker, and query service on top. projectRoot is used
// to resolve the state directory; the job service's path validation is
// bounded to the directory projectRootForValidation derives from it.
func Build(ctx context.Context, cfg *config.Config, projectRoot string) (*App, error) {
	stateDir, err := filepath.Abs(filepath.Join(projectRoot, cfg.Project.StateDir))
	if err != nil {
		return nil, fmt.Errorf("resolve state directory: %w", err)
	}

	lock := NewProjectLock(stateDir)
	acquired, err := lock.Acquire()
	if err != nil {
		return nil, fmt.Errorf("acquire project lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("another agent-brain process already owns %s", stateDir)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	logCfg.FilePath = filepath.Join(stateDir, "logs", "agent-brain.log")
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		_ = lock.Release()
		return nil, fmt.Errorf("set up logging: %w", err)
	}

	app := &App{Config: cfg, Logger: logger, stateDir: stateDir, lock: lock, logCleanup: logCleanup}

	if err := app.buildCollaborators(ctx); err != nil {
		app.Shutdown(ctx)
		return nil, err
	}
	return app, nil
}

func (a *App) buildCollaborators(ctx context.Context) error {
	backend, err := buildBackend(ctx, a.Config, a.stateDir)
	if err != nil {
		return fmt.Errorf("build storage backend: %w", err)
	}
	a.Backend = backend

	embedder, err := buildEmbedder(ctx, a.Config)
	if err != nil {
		return fmt.Errorf("build embedder: %w", err)
	}
	a.Embedder = embedder

	fp := store.EmbeddingFingerprint{
		Provider:   a.Config.Embedding.Provider,
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
	}
	if err := a.Backend.Initialize(ctx, fp); err != nil {
		return fmt.Errorf("initialize storage backend: %w", err)
	}

	a.Summarizer = buildSummarizer(a.Config)

	q, err := queue.New(filepath.Join(a.stateDir, "jobs"))
	if err != nil {
		return fmt.Errorf("build job queue store: %w", err)
	}
	if err := q.Initialize(); err != nil {
		return fmt.Errorf("replay job queue: %w", err)
	}
	a.Queue = q

	if a.Config.Graph.Enabled {
		gs, err := graph.NewSimpleStore(filepath.Join(a.stateDir, "data", "graph"))
		if err != nil {
			return fmt.Errorf("build graph store: %w", err)
		}
		a.GraphStore = gs
	}

	jobs, err := jobservice.New(a.Queue, a.projectRootForValidation())
	if err != nil {
		return fmt.Errorf("build job service: %w", err)
	}
	a.Jobs = jobs

	pipeline := worker.NewPipeline(a.Backend, a.Embedder, a.Summarizer)
	var maxRuntime time.Duration
	if a.Config.Queue.MaxRuntimeSeconds > 0 {
		maxRuntime = time.Duration(a.Config.Queue.MaxRuntimeSeconds) * time.Second
	}
	a.Worker = worker.New(a.Queue, pipeline, worker.Config{
		MaxRuntime:         maxRuntime,
		ProgressCheckpoint: a.Config.Queue.ProgressCheckpointInterval,
	})

	a.Query = query.New(a.Backend, a.Embedder, a.GraphStore, a.Config.Graph.Enabled)

	return nil
}

// projectRootForValidation returns the directory the job service bounds
// enqueued folder paths to: the state directory's grandparent, which is the
// project root when the state directory is the two-level default
// ".claude/agent-brain".
func (a *App) projectRootForValidation() string {
	return filepath.Dir(filepath.Dir(a.stateDir))
}

func buildBackend(ctx context.Context, cfg *config.Config, stateDir string) (store.Backend, error) {
	switch cfg.Storage.Backend {
	case "relational":
		return store.NewRelationalBackend(ctx, cfg.Storage.ConnString)
	default:
		return store.NewColumnarBackend(filepath.Join(stateDir, "data"))
	}
}

func buildEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	if cfg.Embedding.Provider == "" {
		return embed.NewDefaultEmbedder(ctx)
	}
	return embed.NewEmbedder(ctx, embed.ParseProvider(cfg.Embedding.Provider), cfg.Embedding.Model)
}

func buildSummarizer(cfg *config.Config) summarize.Summarizer {
	switch cfg.Summarization.Provider {
	case "ollama":
		return summarize.NewOllamaSummarizer(summarize.OllamaConfig{
			Host:  cfg.Summarization.BaseURL,
			Model: cfg.Summarization.Model,
		})
	case "static", "":
		return summarize.NewStaticSummarizer()
	default:
		return summarize.NewStaticSummarizer()
	}
}

// Descriptor builds the runtime descriptor this app should publish once
// its HTTP listener is bound, per spec.md section 4's discovery contract.
func (a *App) Descriptor(host string, port int, pid int, baseURL string) RuntimeDescriptor {
	return RuntimeDescriptor{
		Mode:        a.Config.Storage.Backend,
		ProjectRoot: a.projectRootForValidation(),
		BindHost:    host,
		Port:        port,
		PID:         pid,
		BaseURL:     baseURL,
	}
}

// Publish writes the runtime descriptor once the server is ready to
// accept requests.
func (a *App) Publish(d RuntimeDescriptor) error {
	return WriteDescriptor(a.stateDir, d)
}

// StartWorker launches the background job worker. It does not block.
func (a *App) StartWorker(ctx context.Context) {
	a.Worker.Start(ctx)
}

// Shutdown stops the worker, then tears down collaborators in the reverse
// of Build's startup order (graph persist, then backend close; the job
// queue store has no teardown step), removes the runtime descriptor,
// and releases the project lock. Errors are collected and logged rather
// than aborting partway, so a failure tearing down one collaborator never
// leaves the rest (and the lock) stuck.
func (a *App) Shutdown(ctx context.Context) {
	if a.Worker != nil {
		if err := a.Worker.Stop(ctx); err != nil && a.Logger != nil {
			a.Logger.Warn("worker stop failed", "error", err)
		}
	}

	if a.GraphStore != nil {
		if err := a.GraphStore.Persist(); err != nil && a.Logger != nil {
			a.Logger.Warn("graph store persist failed", "error", err)
		}
	}

	if a.Backend != nil {
		if err := a.Backend.Close(); err != nil && a.Logger != nil {
			a.Logger.Warn("backend close failed", "error", err)
		}
	}

	if a.Summarizer != nil {
		_ = a.Summarizer.Close()
	}
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}

	if err := RemoveDescriptor(a.stateDir); err != nil && a.Logger != nil {
		a.Logger.Warn("remove runtime descriptor failed", "error", err)
	}

	if a.lock != nil {
		if err := a.lock.Release(); err != nil && a.Logger != nil {
			a.Logger.Warn("release project lock failed", "error", err)
		}
	}

	if a.logCleanup != nil {
		a.logCleanup()
	}
}
