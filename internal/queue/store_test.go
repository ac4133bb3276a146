package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(t *testing.T, id string, status Status) *Record {
	t.Helper()
	return &Record{
		ID:         id,
		DedupeKey:  "dedupe_" + id,
		FolderPath: "/tmp/project",
		Operation:  "index",
		Status:     status,
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestStore_AppendAssignsQueuePosition(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Initialize())

	pos0, err := s.Append(newTestRecord(t, "job_a", StatusPending))
	require.NoError(t, err)
	assert.Equal(t, 0, pos0)

	pos1, err := s.Append(newTestRecord(t, "job_b", StatusPending))
	require.NoError(t, err)
	assert.Equal(t, 1, pos1)
}

func TestStore_FindByDedupeKeyOnlyMatchesActiveJobs(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Initialize())

	done := newTestRecord(t, "job_done", StatusDone)
	done.DedupeKey = "same"
	_, err = s.Append(done)
	require.NoError(t, err)
	assert.Nil(t, s.FindByDedupeKey("same"))

	pending := newTestRecord(t, "job_pending", StatusPending)
	pending.DedupeKey = "same"
	_, err = s.Append(pending)
	require.NoError(t, err)
	assert.NotNil(t, s.FindByDedupeKey("same"))
}

func TestStore_RecoverReplaysJSONLAndResetsStaleRunning(t *testing.T) {
	dir := t.TempDir()

	s1, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Initialize())

	running := newTestRecord(t, "job_running", StatusRunning)
	started := time.Now().UTC()
	running.StartedAt = &started
	_, err = s1.Append(running)
	require.NoError(t, err)

	s2, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s2.Initialize())

	recovered := s2.Get("job_running")
	require.NotNil(t, recovered)
	assert.Equal(t, StatusPending, recovered.Status)
	assert.Equal(t, 1, recovered.RetryCount)
	assert.Nil(t, recovered.StartedAt)
}

func TestStore_StaleRunningExceedingMaxRetriesFails(t *testing.T) {
	dir := t.TempDir()

	s1, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Initialize())

	running := newTestRecord(t, "job_flaky", StatusRunning)
	running.RetryCount = MaxRetries
	_, err = s1.Append(running)
	require.NoError(t, err)

	s2, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s2.Initialize())

	recovered := s2.Get("job_flaky")
	require.NotNil(t, recovered)
	assert.Equal(t, StatusFailed, recovered.Status)
	assert.NotEmpty(t, recovered.Error)
}

func TestStore_CompactionTruncatesLogAfterThreshold(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Initialize())

	for i := 0; i < compactThreshold+5; i++ {
		rec := newTestRecord(t, "job_bulk", StatusPending)
		_, err := s.Append(rec)
		require.NoError(t, err)
	}

	// Compaction ran at the threshold and reset the counter; only the
	// 5 appends after it remain.
	assert.Equal(t, 5, s.updateCount)
}

func TestStore_PendingFIFOOrdersByEnqueueTime(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Initialize())

	first := newTestRecord(t, "job_first", StatusPending)
	first.EnqueuedAt = time.Now().Add(-time.Minute)
	second := newTestRecord(t, "job_second", StatusPending)

	_, err = s.Append(second)
	require.NoError(t, err)
	_, err = s.Append(first)
	require.NoError(t, err)

	pending := s.PendingFIFO()
	require.Len(t, pending, 2)
	assert.Equal(t, "job_first", pending[0].ID)
	assert.Equal(t, "job_second", pending[1].ID)
}

func TestDedupeKey_StableAcrossPatternOrder(t *testing.T) {
	a := DedupeKey("/tmp/x", true, "index", []string{"*.go", "*.md"}, nil)
	b := DedupeKey("/tmp/x", true, "index", []string{"*.md", "*.go"}, nil)
	assert.Equal(t, a, b)
}

func TestDedupeKey_DiffersByOperation(t *testing.T) {
	a := DedupeKey("/tmp/x", true, "index", nil, nil)
	b := DedupeKey("/tmp/x", true, "add", nil, nil)
	assert.NotEqual(t, a, b)
}
