package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vividmind/botwatch/internal/alert"
	"github.com/vividmind/botwatch/internal/api"
	"github.com/vividmind/botwatch/internal/notify"
	"github.com/vividmind/botwatch/internal/queue"
	"github.com/vividmind/botwatch/internal/report"
	"github.com/vividmind/botwatch/internal/storage"
	"github.com/vividmind/botwatch/internal/summary"
)

const testTaskUUID = "6f9fc7f4-19f5-4d3f-b478-3e58e2c8fcae"

type workerFixture struct {
	worker *Worker
	queue  *queue.Queue
	store  *storage.MockStore
	mr     *miniredis.Miniredis
	hits   *int
}

func setupWorker(t *testing.T) *workerFixture {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	q, err := queue.NewQueue(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	router := notify.NewRouter()
	for _, audience := range notify.Audiences {
		router.Register(audience, notify.NewWebhookSender(srv.URL))
	}

	store := storage.NewMockStore()
	w := NewWorker("worker-test", q, summary.NewRefresher(store), alert.NewDispatcher(router, store))
	w.SetPollInterval(10 * time.Millisecond)

	return &workerFixture{worker: w, queue: q, store: store, mr: mr, hits: &hits}
}

func addReport(t *testing.T, store *storage.MockStore, runID string, payload report.Payload) {
	t.Helper()

	r := report.NewRawReport(testTaskUUID, runID, "")
	r.FullReport = payload

	created, err := store.InsertReport(context.Background(), r)
	require.NoError(t, err)
	require.True(t, created)
}

func TestProcessJobRefreshesAndCompletes(t *testing.T) {
	f := setupWorker(t)

	addReport(t, f.store, "run-1", report.Payload{
		"runs_completed":           float64(1),
		"saved_file_count":         float64(3),
		"overall_task_status":      "Completed",
		"overall_bot_login_status": "Logged In",
		"scraped_data_summary":     map[string]any{"total_count": float64(10)},
		"data_enrichment_summary":  map[string]any{"total_count": float64(10)},
	})

	job := queue.NewJob(testTaskUUID, queue.ReasonIngest)
	require.NoError(t, f.queue.Enqueue(job))

	got, err := f.queue.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, got)

	f.worker.processJob(got)

	s, err := f.store.GetSummary(context.Background(), testTaskUUID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalRunsCompleted)

	depth, err := f.queue.Depth()
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)

	// healthy summary: no alerts
	assert.Equal(t, 0, *f.hits)
}

func TestProcessJobDispatchesAlertsOnUpdate(t *testing.T) {
	f := setupWorker(t)

	addReport(t, f.store, "run-1", report.Payload{
		"runs_completed":           float64(1),
		"overall_task_status":      "Failed",
		"overall_bot_login_status": "Logged Out",
	})

	job := queue.NewJob(testTaskUUID, queue.ReasonIngest)
	require.NoError(t, f.queue.Enqueue(job))

	got, err := f.queue.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, got)

	f.worker.processJob(got)

	// logged out + unusual status + completed runs with no saved files:
	// developer, client and manager all receive one message
	assert.Equal(t, 3, *f.hits)
	assert.Len(t, f.store.StampAlertedCalls, 1)
}

func TestProcessJobSkipDoesNotAlert(t *testing.T) {
	f := setupWorker(t)

	addReport(t, f.store, "run-1", report.Payload{
		"overall_task_status":      "Failed",
		"overall_bot_login_status": "Logged Out",
	})

	first := queue.NewJob(testTaskUUID, queue.ReasonIngest)
	f.worker.processJob(first)
	firstHits := *f.hits
	require.Positive(t, firstHits)

	// no new reports: the second refresh is a high-water skip
	second := queue.NewJob(testTaskUUID, queue.ReasonPeriodic)
	f.worker.processJob(second)

	assert.Equal(t, firstHits, *f.hits)
}

func TestProcessJobRetriesOnFailure(t *testing.T) {
	f := setupWorker(t)

	addReport(t, f.store, "run-1", report.Payload{})
	f.store.CountReportsError = errors.New("connection refused")

	job := queue.NewJob(testTaskUUID, queue.ReasonIngest)
	require.NoError(t, f.queue.Enqueue(job))

	got, err := f.queue.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, got)

	f.worker.processJob(got)

	assert.Equal(t, 1, got.Retries)
	assert.NotEmpty(t, got.LastError)

	depth, err := f.queue.Depth()
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestProcessJobRetriesUpToCap(t *testing.T) {
	f := setupWorker(t)

	addReport(t, f.store, "run-1", report.Payload{})
	f.store.CountReportsError = errors.New("connection refused")

	// cap of 3 means three retries after the first attempt
	job := queue.NewJob(testTaskUUID, queue.ReasonIngest)
	job.Retries = 2

	f.worker.processJob(job)

	assert.Equal(t, 3, job.Retries)

	depth, err := f.queue.Depth()
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestProcessJobAbandonsAfterMaxRetries(t *testing.T) {
	f := setupWorker(t)

	addReport(t, f.store, "run-1", report.Payload{})
	f.store.CountReportsError = errors.New("connection refused")

	job := queue.NewJob(testTaskUUID, queue.ReasonIngest)
	job.Retries = 3

	f.worker.processJob(job)

	depth, err := f.queue.Depth()
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)
	assert.False(t, f.mr.Exists("refresh_jobs"))
}

func TestIngestRefreshDispatchPipeline(t *testing.T) {
	f := setupWorker(t)
	h := api.NewAPI(f.store, f.queue)

	body, err := json.Marshal(api.IngestRequest{Data: []api.ReportEntry{
		{TaskUUID: testTaskUUID, TaskName: "Profile Scraper", RunID: "run-1", FullReport: report.Payload{
			"runs_completed":        float64(1),
			"runs_failed_exception": float64(0),
		}},
		{TaskUUID: testTaskUUID, RunID: "run-2", FullReport: report.Payload{
			"runs_completed":        float64(0),
			"runs_failed_exception": float64(1),
		}},
		{TaskUUID: testTaskUUID, RunID: "run-3", FullReport: report.Payload{
			"runs_completed":           float64(2),
			"runs_failed_exception":    float64(0),
			"saved_file_count":         float64(5),
			"overall_task_status":      "Completed",
			"overall_bot_login_status": "Logged In",
			"scraped_data_summary":     map[string]any{"total_count": float64(10)},
			"data_enrichment_summary":  map[string]any{"total_count": float64(10)},
		}},
	}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/reports", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	job, err := f.queue.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, queue.ReasonIngest, job.Reason)

	f.worker.processJob(job)

	s, err := f.store.GetSummary(context.Background(), testTaskUUID)
	require.NoError(t, err)
	assert.Equal(t, 3, s.TotalRunsCompleted)
	assert.Equal(t, 1, s.TotalRunsFailedException)

	// the failed run fans out to every audience
	assert.Equal(t, 3, *f.hits)
	assert.Len(t, f.store.StampAlertedCalls, 1)
}

func TestWorkerStartStop(t *testing.T) {
	f := setupWorker(t)

	addReport(t, f.store, "run-1", report.Payload{"runs_completed": float64(2)})
	require.NoError(t, f.queue.Enqueue(queue.NewJob(testTaskUUID, queue.ReasonIngest)))

	go f.worker.Start()

	require.Eventually(t, func() bool {
		_, err := f.store.GetSummary(context.Background(), testTaskUUID)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	f.worker.Stop()
}
