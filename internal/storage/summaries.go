package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/vividmind/botwatch/internal/summary"
)

// The summary row is stored hybrid: the full aggregate lives in the data
// JSONB column, while the fields used for filtering, sorting and the
// high-water check are mirrored into scalar columns.

const summaryColumns = `
	s.task_uuid,
	COALESCE(t.name, ''), COALESCE(t.task_type, ''), COALESCE(t.interact, FALSE),
	s.data, s.updated_at, s.last_alerted_at
`

// GetSummary loads the aggregate row for a task, joined with the task's
// identity fields. Returns summary.ErrNotFound when no row exists.
func (p *Postgres) GetSummary(ctx context.Context, taskUUID string) (*summary.TaskSummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM task_summaries s
		LEFT JOIN tasks t ON t.uuid = s.task_uuid
		WHERE s.task_uuid = $1
	`

	s, err := scanSummary(p.db.QueryRowContext(ctx, query, taskUUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, summary.ErrNotFound
	}

	return s, err
}

// UpsertSummary writes the refreshed aggregate in a single statement so a
// concurrent refresh of the same task cannot observe a missing row.
func (p *Postgres) UpsertSummary(ctx context.Context, s *summary.TaskSummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal summary for %s: %w", s.TaskUUID, err)
	}

	query := `
		INSERT INTO task_summaries (
			task_uuid, latest_overall_status, latest_login_status,
			has_next_page_info, total_runs_completed, total_runs_failed_exception,
			cumulative_runtime_seconds, average_runtime_seconds,
			latest_ended_at, last_report_at, last_alerted_at, data, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (task_uuid) DO UPDATE SET
			latest_overall_status = EXCLUDED.latest_overall_status,
			latest_login_status = EXCLUDED.latest_login_status,
			has_next_page_info = EXCLUDED.has_next_page_info,
			total_runs_completed = EXCLUDED.total_runs_completed,
			total_runs_failed_exception = EXCLUDED.total_runs_failed_exception,
			cumulative_runtime_seconds = EXCLUDED.cumulative_runtime_seconds,
			average_runtime_seconds = EXCLUDED.average_runtime_seconds,
			latest_ended_at = EXCLUDED.latest_ended_at,
			last_report_at = EXCLUDED.last_report_at,
			last_alerted_at = EXCLUDED.last_alerted_at,
			data = EXCLUDED.data,
			updated_at = NOW()
	`

	_, err = p.db.ExecContext(
		ctx,
		query,
		s.TaskUUID,
		s.LatestOverallStatus,
		s.LatestLoginStatus,
		s.HasNextPageInfo,
		s.TotalRunsCompleted,
		s.TotalRunsFailedException,
		s.CumulativeRuntimeSeconds,
		s.AverageRuntimeSeconds,
		nullableTime(s.LatestEndedAt),
		nullableTime(s.LastReportAt),
		nullableTime(s.LastAlertedAt),
		data,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert summary for %s: %w", s.TaskUUID, err)
	}

	return nil
}

// DeleteSummary removes the aggregate row when a task has no reports left.
func (p *Postgres) DeleteSummary(ctx context.Context, taskUUID string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM task_summaries WHERE task_uuid = $1`, taskUUID,
	)

	return err
}

// StampAlerted records when alerts were last dispatched for a task. The
// stamp is observability only and deliberately leaves updated_at alone, so
// stamping never makes a summary look freshly refreshed.
func (p *Postgres) StampAlerted(ctx context.Context, taskUUID string, at time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE task_summaries
		SET last_alerted_at = $2,
		    data = jsonb_set(data, '{last_alerted_at}', to_jsonb($2::timestamptz))
		WHERE task_uuid = $1
	`, taskUUID, at)

	return err
}

// SummaryFilter narrows and orders the summary listing endpoint.
type SummaryFilter struct {
	TaskUUID        string
	TaskName        string
	OverallStatus   string
	LoginStatus     string
	HasNextPageInfo *bool
	UpdatedAfter    *time.Time
	UpdatedBefore   *time.Time
	OrderBy         string
	Limit           int
}

// orderColumns whitelists the sortable fields, keyed by their JSON names.
var orderColumns = map[string]string{
	"total_runs_completed":             "total_runs_completed",
	"total_runs_failed_exception":      "total_runs_failed_exception",
	"cumulative_total_runtime_seconds": "cumulative_runtime_seconds",
	"average_runtime_seconds_per_run":  "average_runtime_seconds",
	"latest_report_end_datetime":       "latest_ended_at",
	"updated_at":                       "updated_at",
}

// ListSummaries returns summaries matching the filter. Unknown order keys
// fall back to the default of most recently updated first.
func (p *Postgres) ListSummaries(ctx context.Context, f SummaryFilter) ([]*summary.TaskSummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM task_summaries s
		LEFT JOIN tasks t ON t.uuid = s.task_uuid
		WHERE 1=1
	`
	args := []any{}

	if f.TaskUUID != "" {
		args = append(args, f.TaskUUID)
		query += fmt.Sprintf(" AND s.task_uuid = $%d", len(args))
	}
	if f.TaskName != "" {
		args = append(args, "%"+f.TaskName+"%")
		query += fmt.Sprintf(" AND t.name ILIKE $%d", len(args))
	}
	if f.OverallStatus != "" {
		args = append(args, f.OverallStatus)
		query += fmt.Sprintf(" AND s.latest_overall_status = $%d", len(args))
	}
	if f.LoginStatus != "" {
		args = append(args, f.LoginStatus)
		query += fmt.Sprintf(" AND s.latest_login_status = $%d", len(args))
	}
	if f.HasNextPageInfo != nil {
		args = append(args, *f.HasNextPageInfo)
		query += fmt.Sprintf(" AND s.has_next_page_info = $%d", len(args))
	}
	if f.UpdatedAfter != nil {
		args = append(args, *f.UpdatedAfter)
		query += fmt.Sprintf(" AND s.updated_at > $%d", len(args))
	}
	if f.UpdatedBefore != nil {
		args = append(args, *f.UpdatedBefore)
		query += fmt.Sprintf(" AND s.updated_at < $%d", len(args))
	}

	query += " ORDER BY " + orderClause(f.OrderBy)

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	var summaries []*summary.TaskSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// ListSummariesUpdatedSince feeds the periodic alert sweep with every
// summary refreshed inside the window, oldest first.
func (p *Postgres) ListSummariesUpdatedSince(ctx context.Context, since time.Time) ([]*summary.TaskSummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM task_summaries s
		LEFT JOIN tasks t ON t.uuid = s.task_uuid
		WHERE s.updated_at > $1
		ORDER BY s.updated_at ASC
	`

	rows, err := p.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	var summaries []*summary.TaskSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

func orderClause(key string) string {
	desc := strings.HasPrefix(key, "-")
	col, ok := orderColumns[strings.TrimPrefix(key, "-")]
	if !ok {
		return "s.updated_at DESC"
	}
	if desc {
		return "s." + col + " DESC NULLS LAST"
	}
	return "s." + col + " ASC NULLS LAST"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*summary.TaskSummary, error) {
	var (
		taskUUID    string
		name        string
		taskType    string
		interact    bool
		data        []byte
		updatedAt   time.Time
		lastAlerted sql.NullTime
	)

	if err := row.Scan(&taskUUID, &name, &taskType, &interact, &data, &updatedAt, &lastAlerted); err != nil {
		return nil, err
	}

	var s summary.TaskSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary for %s: %w", taskUUID, err)
	}

	// The scalar columns and the task join are authoritative over whatever
	// snapshot the blob carries.
	s.TaskUUID = taskUUID
	s.TaskName = name
	s.TaskType = taskType
	s.Interact = interact
	s.UpdatedAt = updatedAt
	if lastAlerted.Valid {
		t := lastAlerted.Time
		s.LastAlertedAt = &t
	} else {
		s.LastAlertedAt = nil
	}

	return &s, nil
}
