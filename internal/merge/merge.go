// Package merge folds an ordered sequence of raw run reports into a single
// aggregate. It is a pure computation: malformed fields degrade to their
// zero values and never abort the fold.
package merge

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vividmind/botwatch/internal/report"
)

// Result is one fully folded aggregate over a task's reports.
type Result struct {
	TotalReports int

	TotalRunsInitiated        int
	TotalRunsCompleted        int
	TotalRunsFailedException  int
	TotalRunsIncomplete       int
	TotalFoundNextPageInfo    int
	TotalNextPageInfoNotFound int
	TotalSavedFiles           int
	TotalDownloadedFiles      int
	TotalFailedDownloads      int

	CumulativeRuntimeSeconds float64
	AverageRuntimeSeconds    float64
	RuntimeText              string

	TotalLoginAttempts    int
	SuccessfulLogins      int
	FailedLogins          int
	TotalLoginTimeSeconds float64
	LoginTimeText         string
	FinalLogins           string

	TotalTwoFAAttempts    int
	TotalTwoFASuccesses   int
	TotalTwoFAFailures    int
	TotalTwoFATimeSeconds float64

	LoginExceptionsCount         int
	PageDetectionExceptionsCount int
	LocateElementExceptionsCount int

	CriticalEventTypes   []string
	AttemptFailedReasons []string

	PageLoads            map[string]map[string]any
	AggregatedScraped    map[string]float64
	AggregatedEnrichment map[string]float64

	NonFatalErrors           []string
	Exceptions               []string
	SpecificExceptionReasons []string
	FailedDownloads          []string

	LatestOverallStatus  string
	LatestLoginStatus    string
	LatestLastStatus     string
	LatestBillingStatus  string
	LatestRuntimeText    string
	LatestRuntimeSeconds float64
	LatestRunID          string
	LatestStartedAt      *time.Time
	LatestEndedAt        *time.Time
	LatestScraped        report.Payload
	LatestEnrichment     report.Payload
	HasNextPageInfo      bool

	FirstReportAt time.Time
	LastReportAt  time.Time
}

var summedIntFields = []string{
	"runs_initiated",
	"runs_completed",
	"runs_failed_exception",
	"runs_incomplete",
	"found_next_page_info_count",
	"next_page_info_not_found_count",
	"saved_file_count",
	"downloaded_file_count",
	"failed_download_count",
}

// Merge folds reports, ordered oldest first, into one Result. It errors only
// when the sequence is empty; field-level problems degrade to defaults.
func Merge(reports []report.RawReport) (*Result, error) {
	if len(reports) == 0 {
		return nil, errors.New("merge: empty report sequence")
	}

	res := &Result{
		PageLoads:            map[string]map[string]any{},
		AggregatedScraped:    map[string]float64{},
		AggregatedEnrichment: map[string]float64{},
	}

	eventTypesSeen := map[string]bool{}
	failedReasons := map[string]struct{}{}
	nonFatal := map[string]struct{}{}
	exceptions := map[string]struct{}{}
	specificReasons := map[string]struct{}{}
	failedDownloads := map[string]struct{}{}

	loginSuccessReports := 0
	latest := &reports[0]

	for i := range reports {
		r := &reports[i]
		p := r.FullReport

		res.TotalReports++
		res.TotalRunsInitiated += p.Int(summedIntFields[0])
		res.TotalRunsCompleted += p.Int(summedIntFields[1])
		res.TotalRunsFailedException += p.Int(summedIntFields[2])
		res.TotalRunsIncomplete += p.Int(summedIntFields[3])
		res.TotalFoundNextPageInfo += p.Int(summedIntFields[4])
		res.TotalNextPageInfoNotFound += p.Int(summedIntFields[5])
		res.TotalSavedFiles += p.Int(summedIntFields[6])
		res.TotalDownloadedFiles += p.Int(summedIntFields[7])
		res.TotalFailedDownloads += p.Int(summedIntFields[8])

		res.CumulativeRuntimeSeconds += p.Float("total_task_runtime_seconds")

		res.TotalLoginAttempts += p.Int("total_login_attempts")
		successful := p.Int("successful_logins")
		res.SuccessfulLogins += successful
		res.FailedLogins += p.Int("failed_logins")
		res.TotalLoginTimeSeconds += p.Float("total_login_time")
		if successful >= 1 {
			loginSuccessReports++
		}

		res.TotalTwoFAAttempts += p.Int("2fa_attempts")
		res.TotalTwoFASuccesses += p.Int("2fa_successes")
		res.TotalTwoFAFailures += p.Int("2fa_failures")
		res.TotalTwoFATimeSeconds += p.Float("2fa_total_time")

		res.LoginExceptionsCount += p.Int("login_exceptions_count")
		res.PageDetectionExceptionsCount += p.Int("page_detection_exceptions_count")
		res.LocateElementExceptionsCount += p.Int("locate_element_exceptions_count")

		for _, ev := range p.List("critical_events_summary") {
			t := ev.Str("type")
			if t == "" {
				t = "unknown"
			}
			if !eventTypesSeen[t] {
				eventTypesSeen[t] = true
				res.CriticalEventTypes = append(res.CriticalEventTypes, t)
			}
		}
		for _, ev := range p.List("attempt_failed_errors") {
			if t := ev.Str("type"); t != "" {
				failedReasons[t] = struct{}{}
			}
		}

		mergePageLoads(res.PageLoads, p.Map("page_load_details"))
		accumulateNumeric(res.AggregatedScraped, p.Map("scraped_data_summary"))
		accumulateNumeric(res.AggregatedEnrichment, p.Map("data_enrichment_summary"))

		addSegments(nonFatal, p.Str("non_fatal_errors_summary"))
		addSegments(exceptions, p.Str("exceptions_summary"))
		addSegments(specificReasons, p.Str("specific_exception_reasons"))
		addSegments(failedDownloads, p.Str("failed_downloads_summary"))

		if r.CreatedAt.Before(res.FirstReportAt) || res.FirstReportAt.IsZero() {
			res.FirstReportAt = r.CreatedAt
		}
		if r.CreatedAt.After(res.LastReportAt) {
			res.LastReportAt = r.CreatedAt
		}
		if !r.CreatedAt.Before(latest.CreatedAt) {
			latest = r
		}
	}

	res.AttemptFailedReasons = sortedSet(failedReasons)
	res.NonFatalErrors = sortedSet(nonFatal)
	res.Exceptions = sortedSet(exceptions)
	res.SpecificExceptionReasons = sortedSet(specificReasons)
	res.FailedDownloads = sortedSet(failedDownloads)

	res.AverageRuntimeSeconds = res.CumulativeRuntimeSeconds / float64(res.TotalReports)
	res.RuntimeText = FormatHMS(res.CumulativeRuntimeSeconds)
	res.LoginTimeText = FormatHMS(res.TotalLoginTimeSeconds)
	res.FinalLogins = fmt.Sprintf("%d out of %d", loginSuccessReports, res.TotalReports)

	applyLatest(res, latest)

	return res, nil
}

// applyLatest copies the latest-state fields verbatim from the newest report.
func applyLatest(res *Result, r *report.RawReport) {
	p := r.FullReport

	res.LatestOverallStatus = p.Str("overall_task_status")
	res.LatestLoginStatus = p.Str("overall_bot_login_status")
	res.LatestLastStatus = p.Str("last_status_of_task")
	res.LatestBillingStatus = p.Str("billing_issue_resolution_status")
	res.LatestRuntimeText = p.Str("total_task_runtime_text")
	res.LatestRuntimeSeconds = p.Float("total_task_runtime_seconds")
	res.LatestRunID = r.RunID
	res.LatestStartedAt = r.StartedAt
	res.LatestEndedAt = r.EndedAt

	res.LatestScraped = p.Map("scraped_data_summary")
	if res.LatestScraped == nil {
		res.LatestScraped = report.Payload{}
	}
	res.LatestEnrichment = p.Map("data_enrichment_summary")
	if res.LatestEnrichment == nil {
		res.LatestEnrichment = report.Payload{}
	}

	// Tie-break rule: only a clean found/none-missed latest report counts as
	// having more pages. Both-zero is ambiguous and resolves to false.
	found := p.Int("found_next_page_info_count")
	notFound := p.Int("next_page_info_not_found_count")
	res.HasNextPageInfo = found > 0 && notFound == 0
}

// mergePageLoads sums numeric sub-fields per URL key. Non-numeric sub-fields
// keep their first-seen value.
func mergePageLoads(agg map[string]map[string]any, details report.Payload) {
	for url, raw := range details {
		sub, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		urlAgg, ok := agg[url]
		if !ok {
			urlAgg = map[string]any{}
			agg[url] = urlAgg
		}

		for k, v := range sub {
			f, numeric := asNumber(v)
			if !numeric {
				if _, exists := urlAgg[k]; !exists {
					urlAgg[k] = v
				}
				continue
			}

			prev, _ := urlAgg[k].(float64)
			urlAgg[k] = prev + f
		}
	}
}

// accumulateNumeric adds per-key sums from one report's free-form numeric
// summary. Non-numeric values are skipped, not coerced.
func accumulateNumeric(agg map[string]float64, m report.Payload) {
	for k, v := range m {
		if f, ok := asNumber(v); ok {
			agg[k] += f
		}
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// addSegments splits a semicolon-delimited summary string into trimmed,
// non-empty segments and adds them to the set.
func addSegments(set map[string]struct{}, s string) {
	if s == "" {
		return
	}
	for _, seg := range strings.Split(s, ";") {
		if seg = strings.TrimSpace(seg); seg != "" {
			set[seg] = struct{}{}
		}
	}
}

func sortedSet(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)

	return out
}
