package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vividmind/botwatch/internal/report"
	"github.com/vividmind/botwatch/internal/summary"
)

// MockStore is an in-memory stand-in for Postgres used by handler, worker
// and refresher tests. Error fields inject failures per operation; call
// slices record arguments for assertions.
type MockStore struct {
	mu sync.Mutex

	Tasks     map[string]*report.Task
	Reports   map[string][]report.RawReport
	Summaries map[string]*summary.TaskSummary

	UpsertTaskCalls    []string
	InsertReportCalls  []InsertReportCall
	UpsertSummaryCalls []string
	DeleteSummaryCalls []string
	StampAlertedCalls  []StampAlertedCall

	UpsertTaskError    error
	InsertReportError  error
	GetSummaryError    error
	UpsertSummaryError error
	DeleteSummaryError error
	ListReportsError   error
	CountReportsError  error
	StampAlertedError  error
}

type InsertReportCall struct {
	Report  *report.RawReport
	Created bool
}

type StampAlertedCall struct {
	TaskUUID string
	At       time.Time
}

func NewMockStore() *MockStore {
	return &MockStore{
		Tasks:     make(map[string]*report.Task),
		Reports:   make(map[string][]report.RawReport),
		Summaries: make(map[string]*summary.TaskSummary),
	}
}

func (m *MockStore) UpsertTask(ctx context.Context, t *report.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpsertTaskCalls = append(m.UpsertTaskCalls, t.UUID)

	if m.UpsertTaskError != nil {
		return m.UpsertTaskError
	}

	if existing, ok := m.Tasks[t.UUID]; ok {
		if existing.Name == "" {
			existing.Name = t.Name
		}
		if existing.TaskType == "" {
			existing.TaskType = t.TaskType
		}
		existing.Interact = existing.Interact || t.Interact
		return nil
	}

	taskCopy := *t
	m.Tasks[t.UUID] = &taskCopy
	return nil
}

func (m *MockStore) GetTask(ctx context.Context, taskUUID string) (*report.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.Tasks[taskUUID]
	if !ok {
		return nil, fmt.Errorf("task %s not found", taskUUID)
	}

	taskCopy := *t
	return &taskCopy, nil
}

func (m *MockStore) ListTaskUUIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	uuids := make([]string, 0, len(m.Tasks))
	for uuid := range m.Tasks {
		uuids = append(uuids, uuid)
	}
	sort.Strings(uuids)

	return uuids, nil
}

func (m *MockStore) InsertReport(ctx context.Context, r *report.RawReport) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertReportError != nil {
		return false, m.InsertReportError
	}

	for _, existing := range m.Reports[r.TaskUUID] {
		if existing.RunID == r.RunID && existing.DataPoint == r.DataPoint {
			m.InsertReportCalls = append(m.InsertReportCalls, InsertReportCall{Report: r, Created: false})
			return false, nil
		}
	}

	m.Reports[r.TaskUUID] = append(m.Reports[r.TaskUUID], *r)
	m.InsertReportCalls = append(m.InsertReportCalls, InsertReportCall{Report: r, Created: true})
	return true, nil
}

func (m *MockStore) ListReports(ctx context.Context, taskUUID string) ([]report.RawReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListReportsError != nil {
		return nil, m.ListReportsError
	}

	reports := append([]report.RawReport(nil), m.Reports[taskUUID]...)
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.Before(reports[j].CreatedAt)
	})

	return reports, nil
}

func (m *MockStore) ListRecentReports(ctx context.Context, f ReportFilter) ([]report.RawReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var reports []report.RawReport
	for taskUUID, rs := range m.Reports {
		if f.TaskUUID != "" && taskUUID != f.TaskUUID {
			continue
		}
		for _, r := range rs {
			if f.RunID != "" && r.RunID != f.RunID {
				continue
			}
			reports = append(reports, r)
		}
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if len(reports) > limit {
		reports = reports[:limit]
	}

	return reports, nil
}

func (m *MockStore) CountReports(ctx context.Context, taskUUID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CountReportsError != nil {
		return 0, m.CountReportsError
	}

	return len(m.Reports[taskUUID]), nil
}

func (m *MockStore) HasReportsAfter(ctx context.Context, taskUUID string, after time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.Reports[taskUUID] {
		if r.CreatedAt.After(after) {
			return true, nil
		}
	}

	return false, nil
}

func (m *MockStore) GetSummary(ctx context.Context, taskUUID string) (*summary.TaskSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetSummaryError != nil {
		return nil, m.GetSummaryError
	}

	s, ok := m.Summaries[taskUUID]
	if !ok {
		return nil, summary.ErrNotFound
	}

	summaryCopy := *s
	if t, ok := m.Tasks[taskUUID]; ok {
		summaryCopy.TaskName = t.Name
		summaryCopy.TaskType = t.TaskType
		summaryCopy.Interact = t.Interact
	}

	return &summaryCopy, nil
}

func (m *MockStore) UpsertSummary(ctx context.Context, s *summary.TaskSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpsertSummaryCalls = append(m.UpsertSummaryCalls, s.TaskUUID)

	if m.UpsertSummaryError != nil {
		return m.UpsertSummaryError
	}

	summaryCopy := *s
	summaryCopy.UpdatedAt = time.Now().UTC()
	m.Summaries[s.TaskUUID] = &summaryCopy
	return nil
}

func (m *MockStore) DeleteSummary(ctx context.Context, taskUUID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteSummaryCalls = append(m.DeleteSummaryCalls, taskUUID)

	if m.DeleteSummaryError != nil {
		return m.DeleteSummaryError
	}

	delete(m.Summaries, taskUUID)
	return nil
}

func (m *MockStore) ListSummaries(ctx context.Context, f SummaryFilter) ([]*summary.TaskSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var summaries []*summary.TaskSummary
	for taskUUID, s := range m.Summaries {
		summaryCopy := *s
		if t, ok := m.Tasks[taskUUID]; ok {
			summaryCopy.TaskName = t.Name
			summaryCopy.TaskType = t.TaskType
			summaryCopy.Interact = t.Interact
		}

		if f.TaskUUID != "" && summaryCopy.TaskUUID != f.TaskUUID {
			continue
		}
		if f.TaskName != "" && !strings.Contains(strings.ToLower(summaryCopy.TaskName), strings.ToLower(f.TaskName)) {
			continue
		}
		if f.OverallStatus != "" && summaryCopy.LatestOverallStatus != f.OverallStatus {
			continue
		}
		if f.LoginStatus != "" && summaryCopy.LatestLoginStatus != f.LoginStatus {
			continue
		}
		if f.HasNextPageInfo != nil && summaryCopy.HasNextPageInfo != *f.HasNextPageInfo {
			continue
		}
		if f.UpdatedAfter != nil && !summaryCopy.UpdatedAt.After(*f.UpdatedAfter) {
			continue
		}
		if f.UpdatedBefore != nil && !summaryCopy.UpdatedAt.Before(*f.UpdatedBefore) {
			continue
		}

		summaries = append(summaries, &summaryCopy)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}

	return summaries, nil
}

func (m *MockStore) ListSummariesUpdatedSince(ctx context.Context, since time.Time) ([]*summary.TaskSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var summaries []*summary.TaskSummary
	for _, s := range m.Summaries {
		if s.UpdatedAt.After(since) {
			summaryCopy := *s
			summaries = append(summaries, &summaryCopy)
		}
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.Before(summaries[j].UpdatedAt)
	})

	return summaries, nil
}

func (m *MockStore) StampAlerted(ctx context.Context, taskUUID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StampAlertedCalls = append(m.StampAlertedCalls, StampAlertedCall{TaskUUID: taskUUID, At: at})

	if m.StampAlertedError != nil {
		return m.StampAlertedError
	}

	if s, ok := m.Summaries[taskUUID]; ok {
		stamp := at
		s.LastAlertedAt = &stamp
	}

	return nil
}

func (m *MockStore) ReportCount(taskUUID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Reports[taskUUID])
}

func (m *MockStore) Close() error {
	return nil
}
