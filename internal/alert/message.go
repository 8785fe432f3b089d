package alert

import (
	"fmt"
	"strings"

	"github.com/vividmind/botwatch/internal/notify"
	"github.com/vividmind/botwatch/internal/summary"
)

const timestampLayout = "2006-01-02 15:04:05 UTC"

// BuildDeveloperMessage renders the developer alert: full diagnostic fields,
// every fired reason, and the raw-detail blocks.
func BuildDeveloperMessage(s *summary.TaskSummary, d *Decision) notify.Message {
	blocks := []notify.Block{
		notify.Header(fmt.Sprintf(":warning: DEV Alert: Task Issue Detected for %s :warning:", d.TaskName)),
		notify.FieldsSection([]notify.Text{
			notify.Field(fmt.Sprintf("*Task Name:* %s", d.TaskName)),
			notify.Field(fmt.Sprintf("*Task UUID:* `%s`", s.TaskUUID)),
			notify.Field(fmt.Sprintf("*Summary Last Updated:* %s", s.UpdatedAt.UTC().Format(timestampLayout))),
			notify.Field(fmt.Sprintf("*Overall Status (Summary):* %s", s.LatestOverallStatus)),
			notify.Field(fmt.Sprintf("*Login Status (Summary):* %s", s.LatestLoginStatus)),
			notify.Field(fmt.Sprintf("*Total Runs Failed (Ex):* %d", s.TotalRunsFailedException)),
			notify.Field(fmt.Sprintf("*Total Failed Downloads:* %d", s.TotalFailedDownloads)),
			notify.Field(fmt.Sprintf("*Latest Scraped Count:* %d", s.LatestScrapedCount())),
			notify.Field(fmt.Sprintf("*Latest Enriched Count:* %d", s.LatestEnrichedCount())),
		}),
		notify.Section("*Reasons:*\n" + bulleted(d.DevReasons)),
	}

	if len(d.DevDetails) > 0 {
		blocks = append(blocks, notify.Section("*Developer Details:*\n"+strings.Join(d.DevDetails, "\n")))
	}

	if s.LatestRunID != "" {
		endTime := "N/A"
		if s.LatestEndedAt != nil {
			endTime = s.LatestEndedAt.UTC().Format(timestampLayout)
		}
		blocks = append(blocks, notify.Context(fmt.Sprintf("Latest Report Run ID: `%s` | End Time: %s", s.LatestRunID, endTime)))
	}

	return notify.Message{Blocks: blocks}
}

// BuildClientMessage renders the client alert: a performance summary when
// metrics exist, then the issue report.
func BuildClientMessage(s *summary.TaskSummary, d *Decision) notify.Message {
	blocks := []notify.Block{
		notify.Header(fmt.Sprintf(":bar_chart: Performance Report & Status Update for '%s'", d.TaskName)),
	}

	if len(d.ClientMetrics) > 0 {
		fields := []notify.Text{
			notify.Field(fmt.Sprintf("*Task Name:* %s", d.TaskName)),
			notify.Field(fmt.Sprintf("*Latest Run Status:* %s", s.LatestOverallStatus)),
		}
		for _, metric := range d.ClientMetrics {
			fields = append(fields, notify.Field(metric))
		}
		blocks = append(blocks, notify.FieldsSection(fields))
	}

	if len(d.ClientIssues) > 0 {
		blocks = append(blocks, notify.Section("*Issue Report:*\n"+bulleted(d.ClientIssues)))
	}

	blocks = append(blocks, notify.Context("Our automated system is monitoring this task. We'll provide further updates if needed."))

	return notify.Message{Blocks: blocks}
}

// BuildManagerMessage renders the manager alert: operational highlights only.
func BuildManagerMessage(s *summary.TaskSummary, d *Decision) notify.Message {
	return notify.Message{Blocks: []notify.Block{
		notify.Header(fmt.Sprintf(":fire: Manager Alert: Operational Issue for %s :fire:", d.TaskName)),
		notify.FieldsSection([]notify.Text{
			notify.Field(fmt.Sprintf("*Task Name:* %s", d.TaskName)),
			notify.Field(fmt.Sprintf("*Task UUID:* `%s`", s.TaskUUID)),
			notify.Field(fmt.Sprintf("*Overall Status:* %s", s.LatestOverallStatus)),
			notify.Field(fmt.Sprintf("*Login Status:* %s", s.LatestLoginStatus)),
			notify.Field(fmt.Sprintf("*Total Failed Downloads:* %d", s.TotalFailedDownloads)),
		}),
		notify.Section("*Operational Issues:*\n" + bulleted(d.ManagerReasons)),
		notify.Context("Action may be required for devices, accounts, or servers."),
	}}
}

func bulleted(reasons []string) string {
	var b strings.Builder
	for i, r := range reasons {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(r)
	}

	return b.String()
}
