// Package api exposes the HTTP surface: report ingestion, summary queries
// and status corrections.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vividmind/botwatch/internal/httputil"
	"github.com/vividmind/botwatch/internal/metrics"
	"github.com/vividmind/botwatch/internal/queue"
	"github.com/vividmind/botwatch/internal/report"
	"github.com/vividmind/botwatch/internal/storage"
	"github.com/vividmind/botwatch/internal/summary"
)

// Store is the persistence surface the handlers need.
type Store interface {
	UpsertTask(ctx context.Context, t *report.Task) error
	InsertReport(ctx context.Context, r *report.RawReport) (bool, error)
	ListRecentReports(ctx context.Context, f storage.ReportFilter) ([]report.RawReport, error)
	GetSummary(ctx context.Context, taskUUID string) (*summary.TaskSummary, error)
	UpsertSummary(ctx context.Context, s *summary.TaskSummary) error
	ListSummaries(ctx context.Context, f storage.SummaryFilter) ([]*summary.TaskSummary, error)
}

// Scheduler queues summary refreshes after ingestion.
type Scheduler interface {
	Enqueue(job *queue.Job) error
}

type API struct {
	store     Store
	scheduler Scheduler
	mux       *http.ServeMux
}

func NewAPI(store Store, scheduler Scheduler) *API {
	api := &API{
		store:     store,
		scheduler: scheduler,
		mux:       http.NewServeMux(),
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.mux.HandleFunc("/api/reports", a.handleReports)
	a.mux.HandleFunc("/api/summaries", a.handleSummaries)
	a.mux.HandleFunc("/api/summaries/", a.handleSummaryByUUID)
	a.mux.HandleFunc("/api/status-corrections", a.handleStatusCorrection)
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) handleReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.ingestReports(w, r)
	case http.MethodGet:
		a.listReports(w, r)
	default:
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ReportEntry is one element of the ingestion batch. Timestamps arrive as
// millisecond epochs, matching what the bots emit; non-numeric values are
// treated as absent rather than failing the entry.
type ReportEntry struct {
	TaskUUID  string `json:"task_uuid"`
	JobUUID   string `json:"job_uuid"`
	TaskName  string `json:"task_name"`
	TaskType  string `json:"task_type"`
	Interact  bool   `json:"interact"`
	RunID     string `json:"run_id"`
	Service   string `json:"service"`
	EndPoint  string `json:"end_point"`
	DataPoint string `json:"data_point"`

	ReportStartDatetime any `json:"report_start_datetime"`
	ReportEndDatetime   any `json:"report_end_datetime"`

	FullReport report.Payload `json:"full_report"`
}

type IngestRequest struct {
	Data []ReportEntry `json:"data"`
}

type EntryError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type CreatedReport struct {
	ID       string `json:"id"`
	TaskUUID string `json:"task_uuid"`
	RunID    string `json:"run_id"`
}

type IngestResponse struct {
	Created int             `json:"created"`
	Skipped int             `json:"skipped"`
	Errors  []EntryError    `json:"errors"`
	Reports []CreatedReport `json:"reports"`
}

// ingestReports accepts a batch of reports. Entries are validated and
// committed independently: one bad entry lands in the errors list without
// blocking the rest of the batch. Duplicates count as skipped, not errors.
func (a *API) ingestReports(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteJSONError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("failed to close request body: %v", err)
		}
	}()

	var req IngestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if len(req.Data) == 0 {
		httputil.WriteJSONError(w, "data must contain at least one report", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	resp := IngestResponse{
		Errors:  []EntryError{},
		Reports: []CreatedReport{},
	}
	touched := make(map[string]bool)

	for i, entry := range req.Data {
		created, rep, err := a.ingestEntry(ctx, entry)
		if err != nil {
			metrics.RecordReportRejected()
			resp.Errors = append(resp.Errors, EntryError{Index: i, Error: err.Error()})
			continue
		}

		if !created {
			metrics.RecordReportSkipped()
			resp.Skipped++
			continue
		}

		metrics.RecordReportCreated()
		resp.Created++
		resp.Reports = append(resp.Reports, CreatedReport{
			ID:       rep.ID,
			TaskUUID: rep.TaskUUID,
			RunID:    rep.RunID,
		})
		touched[rep.TaskUUID] = true
	}

	for taskUUID := range touched {
		if err := a.scheduler.Enqueue(queue.NewJob(taskUUID, queue.ReasonIngest)); err != nil {
			log.Printf("Failed to enqueue refresh for task %s: %v", taskUUID, err)
		}
	}

	status := http.StatusOK
	if resp.Created > 0 {
		status = http.StatusCreated
	}

	httputil.WriteJSON(w, status, resp)
}

func (a *API) ingestEntry(ctx context.Context, entry ReportEntry) (bool, *report.RawReport, error) {
	if entry.TaskUUID == "" {
		return false, nil, fmt.Errorf("task_uuid is required")
	}
	if _, err := uuid.Parse(entry.TaskUUID); err != nil {
		return false, nil, fmt.Errorf("task_uuid is not a valid UUID: %s", entry.TaskUUID)
	}
	if entry.RunID == "" {
		return false, nil, fmt.Errorf("run_id is required")
	}
	if entry.JobUUID != "" {
		if _, err := uuid.Parse(entry.JobUUID); err != nil {
			return false, nil, fmt.Errorf("job_uuid is not a valid UUID: %s", entry.JobUUID)
		}
	}

	task := &report.Task{
		UUID:     entry.TaskUUID,
		JobUUID:  entry.JobUUID,
		Name:     entry.TaskName,
		TaskType: entry.TaskType,
		Interact: entry.Interact,
	}
	if err := a.store.UpsertTask(ctx, task); err != nil {
		return false, nil, fmt.Errorf("failed to save task: %w", err)
	}

	rep := report.NewRawReport(entry.TaskUUID, entry.RunID, entry.DataPoint)
	rep.Service = entry.Service
	rep.EndPoint = entry.EndPoint
	if entry.FullReport != nil {
		rep.FullReport = entry.FullReport
	}
	rep.StartedAt = epochMillis(entry.ReportStartDatetime)
	rep.EndedAt = epochMillis(entry.ReportEndDatetime)

	created, err := a.store.InsertReport(ctx, rep)
	if err != nil {
		return false, nil, fmt.Errorf("failed to save report: %w", err)
	}

	return created, rep, nil
}

// epochMillis converts a JSON-decoded millisecond epoch into a timestamp.
// Anything non-numeric, including null, counts as absent.
func epochMillis(v any) *time.Time {
	ms, ok := v.(float64)
	if !ok {
		return nil
	}

	t := time.UnixMilli(int64(ms)).UTC()
	return &t
}

func (a *API) listReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.ReportFilter{
		TaskUUID: q.Get("task_uuid"),
		RunID:    q.Get("run_id"),
		Limit:    parseLimit(q.Get("limit")),
	}

	reports, err := a.store.ListRecentReports(r.Context(), filter)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if reports == nil {
		reports = []report.RawReport{}
	}

	httputil.WriteJSON(w, http.StatusOK, reports)
}
