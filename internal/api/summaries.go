package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vividmind/botwatch/internal/httputil"
	"github.com/vividmind/botwatch/internal/storage"
	"github.com/vividmind/botwatch/internal/summary"
)

func (a *API) handleSummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	filter := storage.SummaryFilter{
		TaskUUID:      q.Get("task_uuid"),
		TaskName:      q.Get("task_name"),
		OverallStatus: q.Get("latest_overall_task_status"),
		LoginStatus:   q.Get("latest_overall_bot_login_status"),
		OrderBy:       q.Get("sort"),
		Limit:         parseLimit(q.Get("limit")),
	}

	if filter.TaskUUID != "" {
		if _, err := uuid.Parse(filter.TaskUUID); err != nil {
			httputil.WriteJSONError(w, "task_uuid is not a valid UUID", http.StatusBadRequest)
			return
		}
	}

	if v := q.Get("has_next_page_info"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteJSONError(w, "has_next_page_info must be a boolean", http.StatusBadRequest)
			return
		}
		filter.HasNextPageInfo = &b
	}

	if v := q.Get("updated_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteJSONError(w, "updated_after must be RFC 3339", http.StatusBadRequest)
			return
		}
		filter.UpdatedAfter = &t
	}

	if v := q.Get("updated_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteJSONError(w, "updated_before must be RFC 3339", http.StatusBadRequest)
			return
		}
		filter.UpdatedBefore = &t
	}

	summaries, err := a.store.ListSummaries(r.Context(), filter)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if summaries == nil {
		summaries = []*summary.TaskSummary{}
	}

	httputil.WriteJSON(w, http.StatusOK, summaries)
}

func (a *API) handleSummaryByUUID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	taskUUID := strings.TrimPrefix(r.URL.Path, "/api/summaries/")
	if taskUUID == "" || strings.Contains(taskUUID, "/") {
		httputil.WriteJSONError(w, "Task UUID is required", http.StatusBadRequest)
		return
	}
	if _, err := uuid.Parse(taskUUID); err != nil {
		httputil.WriteJSONError(w, "task_uuid is not a valid UUID", http.StatusBadRequest)
		return
	}

	s, err := a.store.GetSummary(r.Context(), taskUUID)
	if errors.Is(err, summary.ErrNotFound) {
		httputil.WriteJSONError(w, "Summary not found", http.StatusNotFound)
		return
	}
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, s)
}

func parseLimit(v string) int {
	if v == "" {
		return 0
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}

	return n
}
