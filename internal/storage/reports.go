package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/vividmind/botwatch/internal/report"
)

// InsertReport stores one raw report. A duplicate (task, run, data point)
// triple is silently skipped: created is false and err is nil, so concurrent
// producers never see duplicate-key errors.
func (p *Postgres) InsertReport(ctx context.Context, r *report.RawReport) (bool, error) {
	payload, err := r.FullReport.ToJSON()
	if err != nil {
		return false, fmt.Errorf("failed to marshal full report: %w", err)
	}

	query := `
		INSERT INTO raw_reports (
			id, task_uuid, run_id, service, end_point, data_point,
			report_start_datetime, report_end_datetime, full_report, created_at
		) VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10)
		ON CONFLICT (task_uuid, run_id, data_point) DO NOTHING
	`

	res, err := p.db.ExecContext(
		ctx,
		query,
		r.ID,
		r.TaskUUID,
		r.RunID,
		r.Service,
		r.EndPoint,
		r.DataPoint,
		nullableTime(r.StartedAt),
		nullableTime(r.EndedAt),
		payload,
		r.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert report %s/%s: %w", r.TaskUUID, r.RunID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

const reportColumns = `
	id, task_uuid, run_id,
	COALESCE(service, ''), COALESCE(end_point, ''), data_point,
	report_start_datetime, report_end_datetime, full_report, created_at
`

// ListReports returns every report for a task ordered oldest first, the
// ordering the merge engine expects.
func (p *Postgres) ListReports(ctx context.Context, taskUUID string) ([]report.RawReport, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM raw_reports
		WHERE task_uuid = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := p.db.QueryContext(ctx, query, taskUUID)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	return scanReports(rows)
}

// ReportFilter narrows the report listing endpoint.
type ReportFilter struct {
	TaskUUID string
	RunID    string
	Limit    int
}

// ListRecentReports returns reports newest first, optionally filtered.
func (p *Postgres) ListRecentReports(ctx context.Context, f ReportFilter) ([]report.RawReport, error) {
	query := `SELECT ` + reportColumns + ` FROM raw_reports WHERE 1=1`
	args := []any{}

	if f.TaskUUID != "" {
		args = append(args, f.TaskUUID)
		query += fmt.Sprintf(" AND task_uuid = $%d", len(args))
	}
	if f.RunID != "" {
		args = append(args, f.RunID)
		query += fmt.Sprintf(" AND run_id = $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	return scanReports(rows)
}

func (p *Postgres) CountReports(ctx context.Context, taskUUID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM raw_reports WHERE task_uuid = $1`, taskUUID,
	).Scan(&count)

	return count, err
}

// HasReportsAfter is the high-water-mark probe: true when at least one
// report was created strictly after the given time.
func (p *Postgres) HasReportsAfter(ctx context.Context, taskUUID string, after time.Time) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM raw_reports WHERE task_uuid = $1 AND created_at > $2)`,
		taskUUID, after,
	).Scan(&exists)

	return exists, err
}

func scanReports(rows *sql.Rows) ([]report.RawReport, error) {
	var reports []report.RawReport
	for rows.Next() {
		var (
			r       report.RawReport
			payload []byte
			started sql.NullTime
			ended   sql.NullTime
		)

		if err := rows.Scan(
			&r.ID,
			&r.TaskUUID,
			&r.RunID,
			&r.Service,
			&r.EndPoint,
			&r.DataPoint,
			&started,
			&ended,
			&payload,
			&r.CreatedAt,
		); err != nil {
			return nil, err
		}

		full, err := report.PayloadFromJSON(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal full report for %s: %w", r.ID, err)
		}
		r.FullReport = full

		if started.Valid {
			t := started.Time
			r.StartedAt = &t
		}
		if ended.Valid {
			t := ended.Time
			r.EndedAt = &t
		}

		reports = append(reports, r)
	}

	return reports, rows.Err()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
