// Package summary holds the rolling per-task aggregate record and the
// incremental refresher that keeps it up to date with newly ingested
// reports.
package summary

import (
	"time"

	"github.com/vividmind/botwatch/internal/merge"
	"github.com/vividmind/botwatch/internal/report"
)

// TaskSummary is the single aggregate row per task. Counter fields are
// monotonically non-decreasing across refreshes; latest_* fields are
// overwritten from the newest report; LastReportAt is the high-water mark
// deciding whether a refresh has new input.
type TaskSummary struct {
	TaskUUID string `json:"task_uuid"`
	TaskName string `json:"task_name,omitempty"`
	TaskType string `json:"task_type,omitempty"`
	Interact bool   `json:"interact"`

	TotalRunsInitiated        int `json:"total_runs_initiated"`
	TotalRunsCompleted        int `json:"total_runs_completed"`
	TotalRunsFailedException  int `json:"total_runs_failed_exception"`
	TotalRunsIncomplete       int `json:"total_runs_incomplete"`
	TotalFoundNextPageInfo    int `json:"total_found_next_page_info_count"`
	TotalNextPageInfoNotFound int `json:"total_next_page_info_not_found_count"`
	TotalSavedFiles           int `json:"total_saved_file_count"`
	TotalDownloadedFiles      int `json:"total_downloaded_file_count"`
	TotalFailedDownloads      int `json:"total_failed_download_count"`

	CumulativeRuntimeSeconds float64 `json:"cumulative_total_runtime_seconds"`
	AverageRuntimeSeconds    float64 `json:"average_runtime_seconds_per_run"`
	RuntimeText              string  `json:"cumulative_total_runtime_text"`

	TotalLoginAttempts    int     `json:"total_login_attempts"`
	SuccessfulLogins      int     `json:"successful_logins"`
	FailedLogins          int     `json:"failed_logins"`
	TotalLoginTimeSeconds float64 `json:"total_login_time_seconds"`
	LoginTimeText         string  `json:"total_login_time"`
	FinalLogins           string  `json:"final_logins"`

	TotalTwoFAAttempts    int     `json:"total_2fa_attempts"`
	TotalTwoFASuccesses   int     `json:"total_2fa_successes"`
	TotalTwoFAFailures    int     `json:"total_2fa_failures"`
	TotalTwoFATimeSeconds float64 `json:"total_2fa_time_seconds"`

	LoginExceptionsCount         int `json:"login_exceptions_count_total"`
	PageDetectionExceptionsCount int `json:"page_detection_exceptions_count_total"`
	LocateElementExceptionsCount int `json:"locate_element_exceptions_count_total"`

	CriticalEventTypes   []string `json:"critical_event_types"`
	AttemptFailedReasons []string `json:"attempts_failed_reasons"`

	PageLoads            map[string]map[string]any `json:"page_load_details"`
	AggregatedScraped    map[string]float64        `json:"aggregated_scraped_data"`
	AggregatedEnrichment map[string]float64        `json:"aggregated_data_enrichment"`

	NonFatalErrors           []string `json:"all_non_fatal_errors"`
	Exceptions               []string `json:"all_exceptions"`
	SpecificExceptionReasons []string `json:"all_specific_exception_reasons"`
	FailedDownloads          []string `json:"all_failed_downloads_summary"`

	LatestOverallStatus  string         `json:"latest_overall_task_status"`
	LatestLoginStatus    string         `json:"latest_overall_bot_login_status"`
	LatestLastStatus     string         `json:"latest_last_status_of_task"`
	LatestBillingStatus  string         `json:"latest_billing_issue_resolution_status"`
	LatestRuntimeText    string         `json:"latest_total_task_runtime_text"`
	LatestRuntimeSeconds float64        `json:"latest_total_task_runtime_seconds"`
	LatestRunID          string         `json:"run_id_of_latest_report"`
	LatestStartedAt      *time.Time     `json:"latest_report_start_datetime,omitempty"`
	LatestEndedAt        *time.Time     `json:"latest_report_end_datetime,omitempty"`
	LatestScraped        report.Payload `json:"latest_scraped_data_summary"`
	LatestEnrichment     report.Payload `json:"latest_data_enrichment_summary"`
	HasNextPageInfo      bool           `json:"has_next_page_info"`

	TotalReports  int        `json:"total_reports_considered"`
	FirstReportAt *time.Time `json:"first_report_datetime,omitempty"`
	LastReportAt  *time.Time `json:"last_report_datetime,omitempty"`

	UpdatedAt     time.Time  `json:"updated_at"`
	LastAlertedAt *time.Time `json:"last_alerted_at,omitempty"`
}

// FromResult maps a merge aggregate onto a summary row for the given task.
func FromResult(taskUUID string, res *merge.Result) *TaskSummary {
	first := res.FirstReportAt
	last := res.LastReportAt

	return &TaskSummary{
		TaskUUID: taskUUID,

		TotalRunsInitiated:        res.TotalRunsInitiated,
		TotalRunsCompleted:        res.TotalRunsCompleted,
		TotalRunsFailedException:  res.TotalRunsFailedException,
		TotalRunsIncomplete:       res.TotalRunsIncomplete,
		TotalFoundNextPageInfo:    res.TotalFoundNextPageInfo,
		TotalNextPageInfoNotFound: res.TotalNextPageInfoNotFound,
		TotalSavedFiles:           res.TotalSavedFiles,
		TotalDownloadedFiles:      res.TotalDownloadedFiles,
		TotalFailedDownloads:      res.TotalFailedDownloads,

		CumulativeRuntimeSeconds: res.CumulativeRuntimeSeconds,
		AverageRuntimeSeconds:    res.AverageRuntimeSeconds,
		RuntimeText:              res.RuntimeText,

		TotalLoginAttempts:    res.TotalLoginAttempts,
		SuccessfulLogins:      res.SuccessfulLogins,
		FailedLogins:          res.FailedLogins,
		TotalLoginTimeSeconds: res.TotalLoginTimeSeconds,
		LoginTimeText:         res.LoginTimeText,
		FinalLogins:           res.FinalLogins,

		TotalTwoFAAttempts:    res.TotalTwoFAAttempts,
		TotalTwoFASuccesses:   res.TotalTwoFASuccesses,
		TotalTwoFAFailures:    res.TotalTwoFAFailures,
		TotalTwoFATimeSeconds: res.TotalTwoFATimeSeconds,

		LoginExceptionsCount:         res.LoginExceptionsCount,
		PageDetectionExceptionsCount: res.PageDetectionExceptionsCount,
		LocateElementExceptionsCount: res.LocateElementExceptionsCount,

		CriticalEventTypes:   res.CriticalEventTypes,
		AttemptFailedReasons: res.AttemptFailedReasons,

		PageLoads:            res.PageLoads,
		AggregatedScraped:    res.AggregatedScraped,
		AggregatedEnrichment: res.AggregatedEnrichment,

		NonFatalErrors:           res.NonFatalErrors,
		Exceptions:               res.Exceptions,
		SpecificExceptionReasons: res.SpecificExceptionReasons,
		FailedDownloads:          res.FailedDownloads,

		LatestOverallStatus:  res.LatestOverallStatus,
		LatestLoginStatus:    res.LatestLoginStatus,
		LatestLastStatus:     res.LatestLastStatus,
		LatestBillingStatus:  res.LatestBillingStatus,
		LatestRuntimeText:    res.LatestRuntimeText,
		LatestRuntimeSeconds: res.LatestRuntimeSeconds,
		LatestRunID:          res.LatestRunID,
		LatestStartedAt:      res.LatestStartedAt,
		LatestEndedAt:        res.LatestEndedAt,
		LatestScraped:        res.LatestScraped,
		LatestEnrichment:     res.LatestEnrichment,
		HasNextPageInfo:      res.HasNextPageInfo,

		TotalReports:  res.TotalReports,
		FirstReportAt: &first,
		LastReportAt:  &last,
	}
}

// LatestScrapedCount reads the latest run's scraped record count.
func (s *TaskSummary) LatestScrapedCount() int {
	return s.LatestScraped.Int("total_count")
}

// LatestEnrichedCount reads the latest run's enriched record count.
func (s *TaskSummary) LatestEnrichedCount() int {
	return s.LatestEnrichment.Int("total_count")
}
