package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/vividmind/botwatch/internal/httputil"
	"github.com/vividmind/botwatch/internal/summary"
)

// StatusCorrectionRequest marks previously reported issues as handled. The
// named issue fields are cleared on the summary; the next full refresh
// rebuilds them from whatever reports still say.
type StatusCorrectionRequest struct {
	TaskUUID string   `json:"task_uuid"`
	Status   string   `json:"status"`
	Issues   []string `json:"issues"`
}

type StatusCorrectionResponse struct {
	Applied bool                 `json:"applied"`
	Summary *summary.TaskSummary `json:"summary,omitempty"`
}

func (a *API) handleStatusCorrection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req StatusCorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("failed to close request body: %v", err)
		}
	}()

	if req.TaskUUID == "" {
		httputil.WriteJSONError(w, "task_uuid is required", http.StatusBadRequest)
		return
	}
	if _, err := uuid.Parse(req.TaskUUID); err != nil {
		httputil.WriteJSONError(w, "task_uuid is not a valid UUID", http.StatusBadRequest)
		return
	}

	// Pending corrections carry no decision yet.
	if req.Status == "pending" {
		httputil.WriteJSON(w, http.StatusOK, StatusCorrectionResponse{Applied: false})
		return
	}

	s, err := a.store.GetSummary(r.Context(), req.TaskUUID)
	if errors.Is(err, summary.ErrNotFound) {
		httputil.WriteJSONError(w, "Summary not found", http.StatusNotFound)
		return
	}
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	for _, issue := range req.Issues {
		applyCorrection(s, issue)
	}

	if err := a.store.UpsertSummary(r.Context(), s); err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	log.Printf("Applied status correction for task %s (%d issues)", req.TaskUUID, len(req.Issues))

	httputil.WriteJSON(w, http.StatusOK, StatusCorrectionResponse{Applied: true, Summary: s})
}

// applyCorrection clears one named issue on the summary. Unknown issue
// names are ignored.
func applyCorrection(s *summary.TaskSummary, issue string) {
	switch {
	case issue == "failed_downloads":
		s.TotalFailedDownloads = 0
		s.FailedDownloads = nil
	case issue == "exceptions":
		s.Exceptions = nil
		s.SpecificExceptionReasons = nil
	case issue == "non_fatal_errors":
		s.NonFatalErrors = nil
	case issue == "billing":
		s.LatestBillingStatus = "Resolved"
	case strings.HasPrefix(issue, "critical_event:"):
		tag := strings.TrimPrefix(issue, "critical_event:")
		s.CriticalEventTypes = removeString(s.CriticalEventTypes, tag)
	}
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, v := range list {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
