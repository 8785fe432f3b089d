package main

import (
	"context"
	"log"
	"time"

	"github.com/vividmind/botwatch/internal/alert"
	"github.com/vividmind/botwatch/internal/metrics"
	"github.com/vividmind/botwatch/internal/queue"
	"github.com/vividmind/botwatch/internal/storage"
)

// startRefreshAllScheduler periodically enqueues a refresh for every known
// task, catching summaries that missed their ingest-time refresh.
func startRefreshAllScheduler(store *storage.Postgres, q *queue.Queue, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		enqueueAll(store, q)
	}
}

func enqueueAll(store *storage.Postgres, q *queue.Queue) {
	uuids, err := store.ListTaskUUIDs(context.Background())
	if err != nil {
		log.Printf("Failed to list tasks for refresh: %v", err)
		return
	}

	for _, taskUUID := range uuids {
		if err := q.Enqueue(queue.NewJob(taskUUID, queue.ReasonPeriodic)); err != nil {
			log.Printf("Failed to enqueue refresh for task %s: %v", taskUUID, err)
		}
	}

	log.Printf("Scheduled refresh for %d tasks", len(uuids))
}

// startAlertSweep re-evaluates every summary refreshed inside the window.
// Deduplication is disabled, so active conditions alert on every sweep
// until the underlying reports change.
func startAlertSweep(store *storage.Postgres, d *alert.Dispatcher, interval, window time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		sweep(store, d, window)
	}
}

func sweep(store *storage.Postgres, d *alert.Dispatcher, window time.Duration) {
	ctx := context.Background()

	summaries, err := store.ListSummariesUpdatedSince(ctx, time.Now().UTC().Add(-window))
	if err != nil {
		log.Printf("Failed to list summaries for alert sweep: %v", err)
		return
	}

	fired := 0
	for _, s := range summaries {
		if dec := d.Dispatch(ctx, s); dec.Any() {
			fired++
		}
	}

	log.Printf("Alert sweep evaluated %d summaries, %d fired", len(summaries), fired)
}

func startQueueDepthCollector(q *queue.Queue) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		depth, err := q.Depth()
		if err != nil {
			log.Printf("Failed to read queue depth: %v", err)
			continue
		}

		metrics.UpdateRefreshQueueDepth(int(depth))
	}
}
