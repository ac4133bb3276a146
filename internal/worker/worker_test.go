package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-brain/brain/internal/queue"
)

// fakeIndexer is a scriptable Indexer for exercising the worker's state
// machine without touching disk or a real backend.
type fakeIndexer struct {
	mu          sync.Mutex
	count       int
	indexFunc   func(ctx context.Context, req IndexRequest, progress ProgressFunc) (IndexResult, error)
	countCalls  int
}

func (f *fakeIndexer) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	return f.count, nil
}

func (f *fakeIndexer) Index(ctx context.Context, req IndexRequest, progress ProgressFunc) (IndexResult, error) {
	return f.indexFunc(ctx, req, progress)
}

func newTestStore(t *testing.T) *queue.Store {
	t.Helper()
	s, err := queue.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Initialize())
	return s
}

func enqueue(t *testing.T, s *queue.Store, id string) *queue.Record {
	t.Helper()
	job := &queue.Record{
		ID:         id,
		DedupeKey:  "dk_" + id,
		FolderPath: "/tmp/proj",
		Operation:  "index",
		Status:     queue.StatusPending,
		EnqueuedAt: time.Now().UTC(),
	}
	_, err := s.Append(job)
	require.NoError(t, err)
	return job
}

func TestWorker_ProcessJobMarksDoneOnNewChunks(t *testing.T) {
	s := newTestStore(t)
	job := enqueue(t, s, "job_1")

	indexer := &fakeIndexer{count: 0}
	indexer.indexFunc = func(ctx context.Context, req IndexRequest, progress ProgressFunc) (IndexResult, error) {
		require.NoError(t, progress(1, 2, "a.go"))
		indexer.mu.Lock()
		indexer.count = 5
		indexer.mu.Unlock()
		require.NoError(t, progress(2, 2, "b.go"))
		return IndexResult{FilesProcessed: 2, ChunksCreated: 5, Documents: 2}, nil
	}

	w := New(s, indexer, Config{})
	w.processJob(context.Background(), job)

	got := s.Get("job_1")
	require.NotNil(t, got)
	assert.Equal(t, queue.StatusDone, got.Status)
	assert.Equal(t, 5, got.TotalChunks)
	assert.NotNil(t, got.FinishedAt)
}

func TestWorker_ProcessJobFailsWhenNoChunksAdded(t *testing.T) {
	s := newTestStore(t)
	job := enqueue(t, s, "job_2")

	indexer := &fakeIndexer{count: 3}
	indexer.indexFunc = func(ctx context.Context, req IndexRequest, progress ProgressFunc) (IndexResult, error) {
		return IndexResult{FilesProcessed: 0}, nil
	}

	w := New(s, indexer, Config{})
	w.processJob(context.Background(), job)

	got := s.Get("job_2")
	require.NotNil(t, got)
	assert.Equal(t, queue.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "verification failed")
}

func TestWorker_ProcessJobCancelledViaCheckpoint(t *testing.T) {
	s := newTestStore(t)
	job := enqueue(t, s, "job_3")

	indexer := &fakeIndexer{}
	indexer.indexFunc = func(ctx context.Context, req IndexRequest, progress ProgressFunc) (IndexResult, error) {
		// Simulate cancellation being requested mid-run by another caller.
		mid := s.Get("job_3")
		mid.CancelRequested = true
		require.NoError(t, s.Update(mid))

		if err := progress(1, 10, "a.go"); err != nil {
			return IndexResult{}, err
		}
		return IndexResult{FilesProcessed: 10}, nil
	}

	w := New(s, indexer, Config{})
	w.processJob(context.Background(), job)

	got := s.Get("job_3")
	require.NotNil(t, got)
	assert.Equal(t, queue.StatusCancelled, got.Status)
}

func TestWorker_ProcessJobTimesOut(t *testing.T) {
	s := newTestStore(t)
	job := enqueue(t, s, "job_4")

	indexer := &fakeIndexer{}
	indexer.indexFunc = func(ctx context.Context, req IndexRequest, progress ProgressFunc) (IndexResult, error) {
		<-ctx.Done()
		return IndexResult{}, ctx.Err()
	}

	w := New(s, indexer, Config{MaxRuntime: 10 * time.Millisecond})
	w.processJob(context.Background(), job)

	got := s.Get("job_4")
	require.NotNil(t, got)
	assert.Equal(t, queue.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "timed out")
}

func TestWorker_ProcessJobFailsOnIndexerError(t *testing.T) {
	s := newTestStore(t)
	job := enqueue(t, s, "job_5")

	boom := errors.New("boom")
	indexer := &fakeIndexer{}
	indexer.indexFunc = func(ctx context.Context, req IndexRequest, progress ProgressFunc) (IndexResult, error) {
		return IndexResult{}, boom
	}

	w := New(s, indexer, Config{})
	w.processJob(context.Background(), job)

	got := s.Get("job_5")
	require.NotNil(t, got)
	assert.Equal(t, queue.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestWorker_StartProcessesPendingJobsFIFO(t *testing.T) {
	s := newTestStore(t)
	enqueue(t, s, "job_a")
	enqueue(t, s, "job_b")

	var processed []string
	var mu sync.Mutex
	indexer := &fakeIndexer{count: 0}
	indexer.indexFunc = func(ctx context.Context, req IndexRequest, progress ProgressFunc) (IndexResult, error) {
		mu.Lock()
		processed = append(processed, req.FolderPath)
		indexer.count++
		mu.Unlock()
		return IndexResult{FilesProcessed: 1, ChunksCreated: 1, Documents: 1}, nil
	}

	w := New(s, indexer, Config{PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	require.Eventually(t, func() bool {
		a := s.Get("job_a")
		b := s.Get("job_b")
		return a != nil && b != nil && a.Status == queue.StatusDone && b.Status == queue.StatusDone
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, w.Stop(context.Background()))
}
