package jobservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-brain/brain/internal/queue"
)

func newTestService(t *testing.T, projectRoot string) *Service {
	t.Helper()
	store, err := queue.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Initialize())
	svc, err := New(store, projectRoot)
	require.NoError(t, err)
	return svc
}

func TestService_EnqueueReturnsPositionAndLength(t *testing.T) {
	svc := newTestService(t, "")

	res, err := svc.Enqueue(EnqueueRequest{FolderPath: t.TempDir()}, "index", false, false)
	require.NoError(t, err)
	assert.False(t, res.DedupeHit)
	assert.Equal(t, 0, res.QueuePosition)
	assert.Equal(t, 1, res.QueueLength)
	assert.Equal(t, queue.StatusPending, res.Status)
}

func TestService_EnqueueDedupesIdenticalRequest(t *testing.T) {
	svc := newTestService(t, "")
	dir := t.TempDir()

	first, err := svc.Enqueue(EnqueueRequest{FolderPath: dir}, "index", false, false)
	require.NoError(t, err)

	second, err := svc.Enqueue(EnqueueRequest{FolderPath: dir}, "index", false, false)
	require.NoError(t, err)

	assert.True(t, second.DedupeHit)
	assert.Equal(t, first.JobID, second.JobID)
}

func TestService_EnqueueForceBypassesDedupe(t *testing.T) {
	svc := newTestService(t, "")
	dir := t.TempDir()

	first, err := svc.Enqueue(EnqueueRequest{FolderPath: dir}, "index", false, false)
	require.NoError(t, err)

	second, err := svc.Enqueue(EnqueueRequest{FolderPath: dir}, "index", true, false)
	require.NoError(t, err)

	assert.False(t, second.DedupeHit)
	assert.NotEqual(t, first.JobID, second.JobID)
}

func TestService_EnqueueRejectsPathOutsideProjectRoot(t *testing.T) {
	root := t.TempDir()
	svc := newTestService(t, root)

	_, err := svc.Enqueue(EnqueueRequest{FolderPath: "/etc"}, "index", false, false)
	require.Error(t, err)
}

func TestService_EnqueueAllowsExternalWithFlag(t *testing.T) {
	root := t.TempDir()
	svc := newTestService(t, root)
	other := t.TempDir()

	_, err := svc.Enqueue(EnqueueRequest{FolderPath: other}, "index", false, true)
	require.NoError(t, err)
}

func TestService_CancelPendingJobIsImmediate(t *testing.T) {
	svc := newTestService(t, "")
	res, err := svc.Enqueue(EnqueueRequest{FolderPath: t.TempDir()}, "index", false, false)
	require.NoError(t, err)

	status, _, err := svc.Cancel(res.JobID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", status)

	job := svc.Get(res.JobID)
	require.NotNil(t, job)
	assert.Equal(t, queue.StatusCancelled, job.Status)
}

func TestService_CancelDoneJobErrors(t *testing.T) {
	svc := newTestService(t, "")
	res, err := svc.Enqueue(EnqueueRequest{FolderPath: t.TempDir()}, "index", false, false)
	require.NoError(t, err)

	job := svc.Get(res.JobID)
	job.Status = queue.StatusDone
	require.NoError(t, svc.store.Update(job))

	_, _, err = svc.Cancel(res.JobID)
	assert.Error(t, err)
}

func TestService_CancelUnknownJobErrors(t *testing.T) {
	svc := newTestService(t, "")
	_, _, err := svc.Cancel("job_missing")
	assert.Error(t, err)
}

func TestService_ListReportsStats(t *testing.T) {
	svc := newTestService(t, "")
	_, err := svc.Enqueue(EnqueueRequest{FolderPath: t.TempDir()}, "index", false, false)
	require.NoError(t, err)

	list := svc.List(50, 0)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, 1, list.Pending)
	assert.Len(t, list.Jobs, 1)
}
