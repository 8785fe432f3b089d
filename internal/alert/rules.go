// Package alert evaluates task summaries against a fixed battery of
// independent conditions and renders the result into per-audience
// structured messages.
//
// Evaluation is stateless: no memory of previously sent alerts is consulted,
// so every cycle re-fires conditions that still hold. Deduplication is
// disabled as a product decision.
package alert

import (
	"fmt"
	"strings"

	"github.com/vividmind/botwatch/internal/summary"
)

const loggedOutStatus = "Logged Out"

// healthyStatuses are the overall task statuses that do not by themselves
// warrant an alert.
var healthyStatuses = map[string]bool{
	"Completed": true,
	"Running":   true,
	"Initiated": true,
	"Idle":      true,
}

// Sentinel markers that mean "nothing actually went wrong" inside the
// aggregated error collections.
const (
	noExceptionsSentinel     = "No exceptions across all runs"
	noNonFatalErrorsSentinel = "No non-fatal errors across all runs"
	notApplicableSentinel    = "N/A"
)

// Decision carries the per-audience reason buckets produced by one
// evaluation. It is ephemeral and never persisted.
type Decision struct {
	TaskUUID string
	TaskName string

	DevReasons     []string
	DevDetails     []string
	ClientIssues   []string
	ClientMetrics  []string
	ManagerReasons []string
}

// Any reports whether at least one audience has a triggering condition.
func (d *Decision) Any() bool {
	return len(d.DevReasons) > 0 || len(d.ClientIssues) > 0 || len(d.ManagerReasons) > 0
}

// Evaluate runs every rule independently against the summary. Multiple rules
// may fire; each contributes a formatted reason to one or more audiences.
func Evaluate(s *summary.TaskSummary) *Decision {
	name := s.TaskName
	if name == "" {
		name = "Unnamed Task"
	}

	d := &Decision{TaskUUID: s.TaskUUID, TaskName: name}

	if s.LatestLoginStatus == loggedOutStatus {
		d.DevReasons = append(d.DevReasons, "Bot Login Status: *Logged Out*")
		d.ManagerReasons = append(d.ManagerReasons, fmt.Sprintf("Bot Login Failure for task: *%s*", name))
		d.ClientIssues = append(d.ClientIssues, fmt.Sprintf("Bot Status: Your *Bot for '%s'* is currently *Logged Out*.", name))
		d.DevDetails = append(d.DevDetails, fmt.Sprintf("Bot for Task `%s` reported being logged out.", name))
	}

	if !healthyStatuses[s.LatestOverallStatus] {
		d.DevReasons = append(d.DevReasons, fmt.Sprintf("Overall Task Status: *%s*", s.LatestOverallStatus))
		d.ClientIssues = append(d.ClientIssues, fmt.Sprintf("Task Status: Task *'%s'* has an unusual status: *%s*.", name, s.LatestOverallStatus))
		d.DevDetails = append(d.DevDetails, fmt.Sprintf("Task Summary indicates status: `%s`.", s.LatestOverallStatus))
	}

	if actual := filterSentinels(s.Exceptions, noExceptionsSentinel, notApplicableSentinel); len(actual) > 0 {
		d.DevReasons = append(d.DevReasons, "Aggregated Exceptions Detected.")
		d.ManagerReasons = append(d.ManagerReasons, fmt.Sprintf("Exceptions detected in task: *%s*", name))
		d.ClientIssues = append(d.ClientIssues, fmt.Sprintf("System Issue: Your task *'%s'* encountered an *unresolved system issue*.", name))
		d.DevDetails = append(d.DevDetails, detailBlock("Aggregated Exceptions", actual))
	}

	if actual := filterSentinels(s.SpecificExceptionReasons, notApplicableSentinel); len(actual) > 0 {
		d.DevReasons = append(d.DevReasons, "Aggregated Specific Exception Reasons Found.")
		d.ManagerReasons = append(d.ManagerReasons, fmt.Sprintf("Specific exceptions in task: *%s*", name))
		d.ClientIssues = append(d.ClientIssues, fmt.Sprintf("System Issue: Your task *'%s'* encountered a *specific critical error*.", name))
		d.DevDetails = append(d.DevDetails, detailBlock("Aggregated Specific Exception Reasons", actual))
	}

	if actual := filterSentinels(s.NonFatalErrors, noNonFatalErrorsSentinel); len(actual) > 0 {
		d.DevReasons = append(d.DevReasons, "Aggregated Non-Fatal Errors Detected.")
		d.DevDetails = append(d.DevDetails, detailBlock("Aggregated Non-Fatal Errors", actual))
	}

	if s.TotalRunsFailedException > 0 {
		d.DevReasons = append(d.DevReasons, fmt.Sprintf("Total Runs Failed (Exception): %d", s.TotalRunsFailedException))
		d.ClientIssues = append(d.ClientIssues, fmt.Sprintf("Performance Issue: Your task *'%s'* had *%d failed attempts*.", name, s.TotalRunsFailedException))
		d.ManagerReasons = append(d.ManagerReasons, fmt.Sprintf("Task *%s* had %d failed runs.", name, s.TotalRunsFailedException))
		d.DevDetails = append(d.DevDetails, fmt.Sprintf("Summary shows %d runs failed due to exceptions.", s.TotalRunsFailedException))
	}

	if s.TotalFailedDownloads > 0 {
		d.DevReasons = append(d.DevReasons, fmt.Sprintf("Total Failed Downloads: %d", s.TotalFailedDownloads))
		d.ManagerReasons = append(d.ManagerReasons, fmt.Sprintf("Failed downloads in task: *%s*", name))
		d.ClientIssues = append(d.ClientIssues, fmt.Sprintf("Data Issue: *%d files failed to download* for task *'%s'*.", s.TotalFailedDownloads, name))
		d.DevDetails = append(d.DevDetails, fmt.Sprintf("Summary shows %d failed downloads.", s.TotalFailedDownloads))
	}

	if billingIssueActive(s.LatestBillingStatus) {
		d.ClientIssues = append(d.ClientIssues, fmt.Sprintf("Billing Issue: An active billing issue has been detected for '%s'. Status: *%s*.", name, s.LatestBillingStatus))
		d.ManagerReasons = append(d.ManagerReasons, fmt.Sprintf("Billing Issue for task *%s*: %s", name, s.LatestBillingStatus))
	}

	scraped := s.LatestScrapedCount()
	enriched := s.LatestEnrichedCount()

	if s.LatestOverallStatus == "Completed" && scraped == 0 {
		d.DevReasons = append(d.DevReasons, "Scraping Completed with 0 Records.")
		d.ClientIssues = append(d.ClientIssues, fmt.Sprintf("Data Quality Alert: Task *'%s'* completed with *0 records scraped*.", name))
		d.DevDetails = append(d.DevDetails, "Task completed but the latest scraped data summary indicates 0 records. Check for data extraction issues.")
	}

	if s.LatestOverallStatus == "Completed" && scraped > 0 && enriched == 0 {
		d.DevReasons = append(d.DevReasons, "Enrichment Completed with 0 Records despite scraping.")
		d.ClientIssues = append(d.ClientIssues, fmt.Sprintf("Data Quality Alert: Task *'%s'* scraped records (%d) but *yielded 0 enriched records*.", name, scraped))
		d.DevDetails = append(d.DevDetails, fmt.Sprintf("Task scraped records (`%d`), but the latest enrichment summary indicates 0. Check enrichment process.", scraped))
	}

	if s.TotalRunsCompleted > 0 && s.TotalSavedFiles == 0 {
		d.ClientIssues = append(d.ClientIssues, fmt.Sprintf("Data Issue: Task *'%s'* has completed runs but *no saved files*.", name))
	}

	d.ClientMetrics = clientMetrics(s)

	return d
}

// billingIssueActive reports whether a billing resolution status describes an
// unresolved issue. Absent statuses and resolved/not-applicable markers do
// not count.
func billingIssueActive(status string) bool {
	if status == "" {
		return false
	}

	lower := strings.ToLower(status)
	if strings.Contains(lower, "n/a") || lower == "resolved" {
		return false
	}

	return true
}

// filterSentinels drops empty entries and entries containing any of the
// given sentinel markers.
func filterSentinels(entries []string, sentinels ...string) []string {
	var out []string
	for _, e := range entries {
		if e == "" {
			continue
		}

		skip := false
		for _, sentinel := range sentinels {
			if strings.Contains(e, sentinel) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, e)
		}
	}

	return out
}

func detailBlock(title string, entries []string) string {
	return fmt.Sprintf("```%s:\n- %s```", title, strings.Join(entries, "\n- "))
}

// clientMetrics gathers the performance figures shown in client alerts,
// taken from the latest run's scraped/enrichment summaries.
func clientMetrics(s *summary.TaskSummary) []string {
	var metrics []string

	if _, ok := s.LatestScraped["total_users_scraped"]; ok {
		metrics = append(metrics, fmt.Sprintf("Total Users Scraped: *%d*", s.LatestScraped.Int("total_users_scraped")))
	}
	if _, ok := s.LatestScraped["total_posts_scraped"]; ok {
		metrics = append(metrics, fmt.Sprintf("Total Posts Scraped: *%d*", s.LatestScraped.Int("total_posts_scraped")))
	}
	if _, ok := s.LatestScraped["total_count"]; ok && len(metrics) == 0 {
		metrics = append(metrics, fmt.Sprintf("Total Records Scraped: *%d*", s.LatestScraped.Int("total_count")))
	}

	if _, ok := s.LatestEnrichment["total_rows"]; ok {
		metrics = append(metrics, fmt.Sprintf("Total Rows Enriched: *%d*", s.LatestEnrichment.Int("total_rows")))
	}
	if _, ok := s.LatestEnrichment["missing_rows"]; ok {
		metrics = append(metrics, fmt.Sprintf("Missing Rows After Enrichment: *%d*", s.LatestEnrichment.Int("missing_rows")))
	}
	if _, ok := s.LatestEnrichment["total_count"]; ok {
		if _, hasRows := s.LatestEnrichment["total_rows"]; !hasRows {
			metrics = append(metrics, fmt.Sprintf("Total Enriched Records: *%d*", s.LatestEnrichment.Int("total_count")))
		}
	}

	return metrics
}
