package summary

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/vividmind/botwatch/internal/merge"
	"github.com/vividmind/botwatch/internal/report"
)

// ErrNotFound is returned by Store implementations when a task has no
// summary row.
var ErrNotFound = errors.New("summary not found")

// Store is the persistence surface the refresher needs. ListReports must
// return reports ordered oldest first.
type Store interface {
	GetSummary(ctx context.Context, taskUUID string) (*TaskSummary, error)
	UpsertSummary(ctx context.Context, s *TaskSummary) error
	DeleteSummary(ctx context.Context, taskUUID string) error
	ListReports(ctx context.Context, taskUUID string) ([]report.RawReport, error)
	CountReports(ctx context.Context, taskUUID string) (int, error)
	HasReportsAfter(ctx context.Context, taskUUID string, after time.Time) (bool, error)
}

// Outcome says what a refresh did.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeUpdated
	OutcomeDeleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeDeleted:
		return "deleted"
	default:
		return "skipped"
	}
}

type Refresher struct {
	store Store
}

func NewRefresher(store Store) *Refresher {
	return &Refresher{store: store}
}

// Refresh idempotently brings the task's summary up to date with all reports
// that exist at call time. It is a full recompute over every report: the
// set-union and per-key-sum aggregates are not separable from merged state
// without double-counting, and per-task volumes stay small enough that the
// recompute is cheap.
//
// Any error aborts the whole refresh with no partial writes; the caller
// retries the task wholesale.
func (r *Refresher) Refresh(ctx context.Context, taskUUID string) (Outcome, *TaskSummary, error) {
	current, err := r.store.GetSummary(ctx, taskUUID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return OutcomeSkipped, nil, fmt.Errorf("load summary for %s: %w", taskUUID, err)
	}

	count, err := r.store.CountReports(ctx, taskUUID)
	if err != nil {
		return OutcomeSkipped, nil, fmt.Errorf("count reports for %s: %w", taskUUID, err)
	}

	// A summary cannot outlive its backing reports.
	if count == 0 {
		if current == nil {
			return OutcomeSkipped, nil, nil
		}
		if err := r.store.DeleteSummary(ctx, taskUUID); err != nil {
			return OutcomeSkipped, nil, fmt.Errorf("delete orphaned summary for %s: %w", taskUUID, err)
		}
		log.Printf("No reports remain for task %s, summary deleted", taskUUID)
		return OutcomeDeleted, nil, nil
	}

	// High-water mark check: the cheap common case for a cold polling loop.
	if current != nil && current.LastReportAt != nil {
		hasNew, err := r.store.HasReportsAfter(ctx, taskUUID, *current.LastReportAt)
		if err != nil {
			return OutcomeSkipped, nil, fmt.Errorf("check new reports for %s: %w", taskUUID, err)
		}
		if !hasNew {
			return OutcomeSkipped, current, nil
		}
	}

	reports, err := r.store.ListReports(ctx, taskUUID)
	if err != nil {
		return OutcomeSkipped, nil, fmt.Errorf("list reports for %s: %w", taskUUID, err)
	}
	if len(reports) == 0 {
		// Reports disappeared between count and list; next cycle cleans up.
		return OutcomeSkipped, current, nil
	}

	res, err := merge.Merge(reports)
	if err != nil {
		return OutcomeSkipped, nil, fmt.Errorf("merge reports for %s: %w", taskUUID, err)
	}

	next := FromResult(taskUUID, res)
	if current != nil {
		next.LastAlertedAt = current.LastAlertedAt
	}

	if err := r.store.UpsertSummary(ctx, next); err != nil {
		return OutcomeSkipped, nil, fmt.Errorf("upsert summary for %s: %w", taskUUID, err)
	}

	log.Printf("Summary for task %s refreshed over %d reports (high-water mark %s)",
		taskUUID, res.TotalReports, res.LastReportAt.Format(time.RFC3339))

	return OutcomeUpdated, next, nil
}
