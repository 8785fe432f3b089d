package queue

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTaskUUID = "6f9fc7f4-19f5-4d3f-b478-3e58e2c8fcae"

func setupTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	q, err := NewQueue(mr.Addr())
	require.NoError(t, err)

	return q, mr
}

func TestNewQueue(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	assert.NotNil(t, q)
	assert.NotNil(t, q.client)
}

func TestNewQueueInvalidAddress(t *testing.T) {
	_, err := NewQueue("invalid:99999")
	assert.Error(t, err)
}

func TestEnqueueAndDequeue(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	job := NewJob(testTaskUUID, ReasonIngest)
	require.NoError(t, q.Enqueue(job))

	got, err := q.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, testTaskUUID, got.TaskUUID)
	assert.Equal(t, ReasonIngest, got.Reason)
	assert.Equal(t, 0, got.Retries)
}

func TestDequeueEmptyQueue(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	got, err := q.Dequeue()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEnqueueDeduplicatesByTask(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	require.NoError(t, q.Enqueue(NewJob(testTaskUUID, ReasonIngest)))
	require.NoError(t, q.Enqueue(NewJob(testTaskUUID, ReasonIngest)))
	require.NoError(t, q.Enqueue(NewJob(testTaskUUID, ReasonPeriodic)))

	depth, err := q.Depth()
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	got, err := q.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, testTaskUUID, got.TaskUUID)

	got, err = q.Dequeue()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEnqueueDifferentTasks(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	require.NoError(t, q.Enqueue(NewJob(testTaskUUID, ReasonIngest)))
	require.NoError(t, q.Enqueue(NewJob("0d664e86-9dfb-4dbb-a671-16ba71bbf300", ReasonIngest)))

	depth, err := q.Depth()
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)
}

func TestDequeueRespectsScheduledTime(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	job := NewJob(testTaskUUID, ReasonIngest)
	job.ScheduledAt = time.Now().UTC().Add(time.Hour)
	require.NoError(t, q.Enqueue(job))

	got, err := q.Dequeue()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRetryReschedulesWithBackoff(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	job := NewJob(testTaskUUID, ReasonIngest)
	require.NoError(t, q.Enqueue(job))

	got, err := q.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, got)

	before := time.Now().UTC()
	require.NoError(t, q.Retry(got, "refresh failed"))

	assert.Equal(t, 1, got.Retries)
	assert.Equal(t, "refresh failed", got.LastError)
	assert.True(t, got.ScheduledAt.After(before))

	// not due yet
	pending, err := q.Dequeue()
	require.NoError(t, err)
	assert.Nil(t, pending)

	depth, err := q.Depth()
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestCompleteDropsJobBody(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	job := NewJob(testTaskUUID, ReasonIngest)
	require.NoError(t, q.Enqueue(job))

	got, err := q.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NoError(t, q.Complete(got))

	assert.False(t, mr.Exists("refresh_jobs"))
}

func TestBackoffIsBoundedAndGrows(t *testing.T) {
	assert.Equal(t, time.Second, backoff(1))
	assert.Equal(t, 2*time.Second, backoff(2))
	assert.Equal(t, 4*time.Second, backoff(3))
	assert.Equal(t, time.Minute, backoff(10))
}

func TestJobJSONRoundTrip(t *testing.T) {
	job := NewJob(testTaskUUID, ReasonManual)
	job.Retries = 2
	job.LastError = "timeout"

	data, err := job.ToJSON()
	require.NoError(t, err)

	back, err := JobFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, job.TaskUUID, back.TaskUUID)
	assert.Equal(t, ReasonManual, back.Reason)
	assert.Equal(t, 2, back.Retries)
	assert.Equal(t, "timeout", back.LastError)
}
