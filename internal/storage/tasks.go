package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/vividmind/botwatch/internal/report"
)

// UpsertTask creates the task on first sight. An existing row only picks up
// name/type/interact values it did not have yet; already-set fields win.
func (p *Postgres) UpsertTask(ctx context.Context, t *report.Task) error {
	query := `
		INSERT INTO tasks (uuid, job_uuid, name, task_type, interact, created_at)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, NOW())
		ON CONFLICT (uuid) DO UPDATE SET
			name = CASE WHEN tasks.name = '' THEN EXCLUDED.name ELSE tasks.name END,
			task_type = CASE WHEN tasks.task_type = '' THEN EXCLUDED.task_type ELSE tasks.task_type END,
			interact = tasks.interact OR EXCLUDED.interact
	`

	_, err := p.db.ExecContext(ctx, query, t.UUID, t.JobUUID, t.Name, t.TaskType, t.Interact)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", t.UUID, err)
	}

	return nil
}

func (p *Postgres) GetTask(ctx context.Context, taskUUID string) (*report.Task, error) {
	query := `
		SELECT uuid, COALESCE(job_uuid::text, ''), name, task_type, interact, created_at
		FROM tasks
		WHERE uuid = $1
	`

	var t report.Task
	err := p.db.QueryRowContext(ctx, query, taskUUID).Scan(
		&t.UUID,
		&t.JobUUID,
		&t.Name,
		&t.TaskType,
		&t.Interact,
		&t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s not found", taskUUID)
	}
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// ListTaskUUIDs returns the identifier of every known task, for the batch
// refresh fan-out.
func (p *Postgres) ListTaskUUIDs(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT uuid FROM tasks ORDER BY created_at`)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	var uuids []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		uuids = append(uuids, u)
	}

	return uuids, rows.Err()
}
