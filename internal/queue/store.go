package queue

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/agent-brain/brain/internal/errorsx"
)

const (
	queueFile      = "index_queue.jsonl"
	snapshotFile   = "index_queue.snapshot"
	lockFile       = ".queue.lock"
	compactThreshold = 100
)

// Store is the JSONL-backed, crash-recoverable job queue described in
// spec.md §4.9: an append-only log plus periodic snapshot compaction,
// guarded by an OS-level file lock so multiple processes sharing a
// state directory don't interleave writes.
type Store struct {
	mu  sync.Mutex
	dir string

	queuePath    string
	snapshotPath string
	lockPath     string

	jobs         map[string]*Record
	updateCount  int
}

// New creates a Store rooted at dir (typically <project>/.claude/agent-brain/jobs).
// Call Initialize before use.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errorsx.Storage("queue", "create job directory", err)
	}
	return &Store{
		dir:          dir,
		queuePath:    filepath.Join(dir, queueFile),
		snapshotPath: filepath.Join(dir, snapshotFile),
		lockPath:     filepath.Join(dir, lockFile),
		jobs:         make(map[string]*Record),
	}, nil
}

// Initialize loads persisted jobs (snapshot then JSONL replay) and
// resets any job stuck RUNNING from a prior crash.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	return s.handleStaleJobsLocked()
}

func (s *Store) loadLocked() error {
	s.jobs = make(map[string]*Record)

	if err := s.replayFileLocked(s.snapshotPath); err != nil {
		slog.Error("queue_snapshot_load_failed", slog.String("error", err.Error()))
		s.jobs = make(map[string]*Record)
	} else {
		slog.Info("queue_snapshot_loaded", slog.Int("jobs", len(s.jobs)))
	}

	if err := s.replayFileLocked(s.queuePath); err != nil {
		slog.Error("queue_jsonl_replay_failed", slog.String("error", err.Error()))
	} else {
		slog.Info("queue_jsonl_replayed", slog.Int("jobs", len(s.jobs)))
	}
	return nil
}

func (s *Store) replayFileLocked(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	lock := flock.New(s.lockPath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire queue lock: %w", err)
	}
	defer lock.Unlock()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			slog.Warn("queue_skip_malformed_line", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		job := rec
		s.jobs[job.ID] = &job
	}
	return scanner.Err()
}

// handleStaleJobsLocked resets jobs that were RUNNING when the process
// last stopped: retried up to MaxRetries, then marked FAILED.
func (s *Store) handleStaleJobsLocked() error {
	now := time.Now().UTC()
	for _, job := range s.jobs {
		if job.Status != StatusRunning {
			continue
		}
		job.RetryCount++
		if job.RetryCount > MaxRetries {
			job.Status = StatusFailed
			job.Error = fmt.Sprintf("max retries (%d) exceeded after restart", MaxRetries)
			job.FinishedAt = &now
			slog.Warn("queue_job_permanently_failed", slog.String("job_id", job.ID), slog.Int("retry_count", job.RetryCount))
		} else {
			job.Status = StatusPending
			job.StartedAt = nil
			job.Progress = nil
			slog.Info("queue_job_reset_to_pending", slog.String("job_id", job.ID), slog.Int("retry_count", job.RetryCount))
		}
		if err := s.persistLocked(job); err != nil {
			return err
		}
	}
	return nil
}

// persistLocked appends job to the JSONL log under the file lock,
// fsyncs, and compacts once compactThreshold appends have accumulated.
func (s *Store) persistLocked(job *Record) error {
	lock := flock.New(s.lockPath)
	if err := lock.Lock(); err != nil {
		return errorsx.Storage("queue", "acquire queue lock", err)
	}
	defer lock.Unlock()

	line, err := json.Marshal(job)
	if err != nil {
		return errorsx.Storage("queue", "encode job record", err)
	}

	f, err := os.OpenFile(s.queuePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errorsx.Storage("queue", "open job log", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return errorsx.Storage("queue", "append job record", err)
	}
	if err := f.Sync(); err != nil {
		return errorsx.Storage("queue", "fsync job log", err)
	}

	s.updateCount++
	if s.updateCount >= compactThreshold {
		return s.compactLocked()
	}
	return nil
}

// compactLocked writes a full snapshot of in-memory state and truncates
// the JSONL log, keeping the on-disk footprint bounded.
func (s *Store) compactLocked() error {
	slog.Info("queue_compacting", slog.Int("jobs", len(s.jobs)))

	tmpPath := s.snapshotPath + ".tmp"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return errorsx.Storage("queue", "create snapshot temp file", err)
	}

	ordered := make([]*Record, 0, len(s.jobs))
	for _, job := range s.jobs {
		ordered = append(ordered, job)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].EnqueuedAt.Before(ordered[j].EnqueuedAt) })

	w := bufio.NewWriter(tmp)
	for _, job := range ordered {
		line, err := json.Marshal(job)
		if err != nil {
			tmp.Close()
			return errorsx.Storage("queue", "encode job for snapshot", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			tmp.Close()
			return errorsx.Storage("queue", "write snapshot", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return errorsx.Storage("queue", "flush snapshot", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errorsx.Storage("queue", "fsync snapshot", err)
	}
	if err := tmp.Close(); err != nil {
		return errorsx.Storage("queue", "close snapshot temp file", err)
	}
	if err := os.Rename(tmpPath, s.snapshotPath); err != nil {
		return errorsx.Storage("queue", "rename snapshot into place", err)
	}
	if err := os.Truncate(s.queuePath, 0); err != nil && !os.IsNotExist(err) {
		return errorsx.Storage("queue", "truncate job log", err)
	}

	s.updateCount = 0
	slog.Info("queue_compaction_complete", slog.Int("jobs", len(ordered)))
	return nil
}

// Append adds a new job to the queue and returns its 0-indexed position
// among other pending jobs (spec.md §4.9's enqueue response field).
func (s *Store) Append(job *Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = job
	if err := s.persistLocked(job); err != nil {
		return 0, err
	}

	position := 0
	for _, j := range s.jobs {
		if j.ID != job.ID && j.Status == StatusPending {
			position++
		}
	}
	slog.Info("queue_job_appended", slog.String("job_id", job.ID), slog.Int("position", position))
	return position, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(job *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return errorsx.New(errorsx.KindValidation, fmt.Sprintf("job %s not found", job.ID))
	}
	s.jobs[job.ID] = job
	return s.persistLocked(job)
}

// Get returns a copy of the job record, or nil if not found.
func (s *Store) Get(id string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}

// FindByDedupeKey returns the active (pending or running) job matching
// dedupeKey, if any.
func (s *Store) FindByDedupeKey(dedupeKey string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.DedupeKey == dedupeKey && (job.Status == StatusPending || job.Status == StatusRunning) {
			cp := *job
			return &cp
		}
	}
	return nil
}

// PendingFIFO returns pending jobs ordered by enqueue time, oldest first.
func (s *Store) PendingFIFO() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*Record
	for _, job := range s.jobs {
		if job.Status == StatusPending {
			cp := *job
			pending = append(pending, &cp)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].EnqueuedAt.Before(pending[j].EnqueuedAt) })
	return pending
}

// Running returns the currently running job, if any.
func (s *Store) Running() *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.Status == StatusRunning {
			cp := *job
			return &cp
		}
	}
	return nil
}

// List returns jobs newest-first, paginated.
func (s *Store) List(limit, offset int) []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*Record, 0, len(s.jobs))
	for _, job := range s.jobs {
		cp := *job
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].EnqueuedAt.After(all[j].EnqueuedAt) })

	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) || limit <= 0 {
		end = len(all)
	}
	return all[offset:end]
}

// QueueStats summarizes the current queue.
func (s *Store) QueueStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	now := time.Now().UTC()
	for _, job := range s.jobs {
		stats.Total++
		switch job.Status {
		case StatusPending:
			stats.Pending++
		case StatusRunning:
			stats.Running++
			stats.CurrentJobID = job.ID
			if job.StartedAt != nil {
				stats.CurrentJobRunningTimeMS = now.Sub(*job.StartedAt).Milliseconds()
			}
		case StatusDone:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		case StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

// QueueLength returns the count of jobs not yet completed (pending + running).
func (s *Store) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, job := range s.jobs {
		if job.Status == StatusPending || job.Status == StatusRunning {
			n++
		}
	}
	return n
}
