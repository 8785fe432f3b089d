// Package queue schedules summary refreshes through Redis. A sorted set
// orders pending task UUIDs by due time; a hash holds the job bodies.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	jobsKey  = "refresh_jobs"
	queueKey = "refresh_queue"
)

type Queue struct {
	client *redis.Client
	ctx    context.Context
}

func NewQueue(redisAddr string) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Queue{
		client: client,
		ctx:    ctx,
	}, nil
}

// Enqueue schedules a refresh for the job's task. If the task is already
// pending, its position in the queue is kept and only the job body is
// updated, so a burst of reports for one task triggers a single refresh.
func (q *Queue) Enqueue(job *Job) error {
	jobJSON, err := job.ToJSON()
	if err != nil {
		return err
	}

	if err := q.client.HSet(q.ctx, jobsKey, job.TaskUUID, jobJSON).Err(); err != nil {
		return err
	}

	return q.client.ZAddNX(q.ctx, queueKey, redis.Z{
		Score:  float64(job.ScheduledAt.UnixMilli()),
		Member: job.TaskUUID,
	}).Err()
}

// Dequeue pops the next due job, or returns nil when nothing is due yet.
func (q *Queue) Dequeue() (*Job, error) {
	maxScore := float64(time.Now().UnixMilli())

	results, err := q.client.ZRangeByScore(q.ctx, queueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", maxScore),
		Count: 1,
	}).Result()

	if err != nil || len(results) == 0 {
		return nil, err
	}

	taskUUID := results[0]

	q.client.ZRem(q.ctx, queueKey, taskUUID)

	jobJSON, err := q.client.HGet(q.ctx, jobsKey, taskUUID).Result()
	if err != nil {
		return nil, err
	}

	return JobFromJSON(jobJSON)
}

// Complete drops the job body once its refresh succeeded or was abandoned.
func (q *Queue) Complete(job *Job) error {
	return q.client.HDel(q.ctx, jobsKey, job.TaskUUID).Err()
}

// Retry reschedules a failed job with exponential backoff.
func (q *Queue) Retry(job *Job, lastError string) error {
	job.Retries++
	job.LastError = lastError
	job.ScheduledAt = time.Now().UTC().Add(backoff(job.Retries))

	jobJSON, err := job.ToJSON()
	if err != nil {
		return err
	}

	if err := q.client.HSet(q.ctx, jobsKey, job.TaskUUID, jobJSON).Err(); err != nil {
		return err
	}

	return q.client.ZAdd(q.ctx, queueKey, redis.Z{
		Score:  float64(job.ScheduledAt.UnixMilli()),
		Member: job.TaskUUID,
	}).Err()
}

// Depth reports how many refreshes are pending.
func (q *Queue) Depth() (int64, error) {
	return q.client.ZCard(q.ctx, queueKey).Result()
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func backoff(retries int) time.Duration {
	d := time.Second
	for i := 1; i < retries; i++ {
		d *= 2
	}
	if d > time.Minute {
		d = time.Minute
	}
	return d
}
