package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vividmind/botwatch/internal/report"
)

func TestUpsertTask(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer func() { _ = db.Close() }()

	task := &report.Task{
		UUID:     testTaskUUID,
		Name:     "Profile Scraper",
		TaskType: "scraper",
		Interact: true,
	}

	mock.ExpectExec("INSERT INTO tasks.*ON CONFLICT \\(uuid\\) DO UPDATE").
		WithArgs(testTaskUUID, "", "Profile Scraper", "scraper", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpsertTask(context.Background(), task))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTask(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer func() { _ = db.Close() }()

	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT.*FROM tasks.*WHERE uuid").
		WithArgs(testTaskUUID).
		WillReturnRows(sqlmock.NewRows([]string{
			"uuid", "job_uuid", "name", "task_type", "interact", "created_at",
		}).AddRow(testTaskUUID, "", "Profile Scraper", "scraper", false, created))

	task, err := store.GetTask(context.Background(), testTaskUUID)
	require.NoError(t, err)

	assert.Equal(t, testTaskUUID, task.UUID)
	assert.Equal(t, "Profile Scraper", task.Name)
	assert.Equal(t, created, task.CreatedAt)
}

func TestGetTaskNotFound(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT.*FROM tasks").
		WithArgs(testTaskUUID).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetTask(context.Background(), testTaskUUID)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListTaskUUIDs(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT uuid FROM tasks").
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}).
			AddRow(testTaskUUID).
			AddRow("0d664e86-9dfb-4dbb-a671-16ba71bbf300"))

	uuids, err := store.ListTaskUUIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{testTaskUUID, "0d664e86-9dfb-4dbb-a671-16ba71bbf300"}, uuids)
}
