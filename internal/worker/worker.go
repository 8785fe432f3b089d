// Package worker provides the background processor that drains the refresh
// queue, recomputes task summaries and dispatches alerts on change.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/vividmind/botwatch/internal/alert"
	"github.com/vividmind/botwatch/internal/metrics"
	"github.com/vividmind/botwatch/internal/queue"
	"github.com/vividmind/botwatch/internal/summary"
)

type Worker struct {
	id           string
	queue        *queue.Queue
	refresher    *summary.Refresher
	dispatcher   *alert.Dispatcher
	stop         chan bool
	pollInterval time.Duration
	maxRetries   int
}

func NewWorker(id string, q *queue.Queue, r *summary.Refresher, d *alert.Dispatcher) *Worker {
	return &Worker{
		id:           id,
		queue:        q,
		refresher:    r,
		dispatcher:   d,
		stop:         make(chan bool),
		pollInterval: time.Second,
		maxRetries:   3,
	}
}

func (w *Worker) SetPollInterval(d time.Duration) {
	w.pollInterval = d
}

// SetMaxRetries caps how many times a failed refresh is re-enqueued after
// its first attempt.
func (w *Worker) SetMaxRetries(n int) {
	w.maxRetries = n
}

func (w *Worker) Start() {
	log.Printf("Worker %s started", w.id)

	for {
		select {
		case <-w.stop:
			log.Printf("Worker %s stopped", w.id)
			return
		default:
			job, err := w.queue.Dequeue()
			if err != nil || job == nil {
				time.Sleep(w.pollInterval)
				continue
			}

			w.processJob(job)
		}
	}
}

func (w *Worker) processJob(job *queue.Job) {
	log.Printf("Worker %s refreshing task %s (reason: %s)", w.id, job.TaskUUID, job.Reason)

	ctx := context.Background()
	started := time.Now()

	outcome, updated, err := w.refresher.Refresh(ctx, job.TaskUUID)
	if err != nil {
		metrics.RecordRefreshFailed()

		if job.Retries < w.maxRetries {
			if retryErr := w.queue.Retry(job, err.Error()); retryErr != nil {
				log.Printf("Failed to re-enqueue refresh for task %s: %v", job.TaskUUID, retryErr)
			}
			log.Printf("Refresh of task %s failed, will retry (%d/%d): %v",
				job.TaskUUID, job.Retries, w.maxRetries, err)
			return
		}

		if completeErr := w.queue.Complete(job); completeErr != nil {
			log.Printf("Failed to drop abandoned job for task %s: %v", job.TaskUUID, completeErr)
		}
		log.Printf("Refresh of task %s failed permanently: %v", job.TaskUUID, err)
		return
	}

	metrics.RecordRefresh(outcome.String(), time.Since(started))

	if err := w.queue.Complete(job); err != nil {
		log.Printf("Failed to complete job for task %s: %v", job.TaskUUID, err)
	}

	log.Printf("Refresh of task %s %s", job.TaskUUID, outcome)

	if outcome == summary.OutcomeUpdated && updated != nil {
		w.dispatcher.Dispatch(ctx, updated)
	}
}

func (w *Worker) Stop() {
	w.stop <- true
}
