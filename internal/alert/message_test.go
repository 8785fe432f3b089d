package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vividmind/botwatch/internal/report"
)

func TestBuildDeveloperMessage(t *testing.T) {
	s := healthySummary()
	s.LatestLoginStatus = "Logged Out"
	s.LatestRunID = "run-9"
	ended := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)
	s.LatestEndedAt = &ended

	d := Evaluate(s)
	msg := BuildDeveloperMessage(s, d)

	require.NotEmpty(t, msg.Blocks)
	assert.Equal(t, "header", msg.Blocks[0].Type)
	assert.Contains(t, msg.Blocks[0].Text.Text, "DEV Alert")
	assert.Contains(t, msg.Blocks[0].Text.Text, "Profile Scraper")

	text := msg.PlainText()
	assert.Contains(t, text, "*Task UUID:* `6f9fc7f4-19f5-4d3f-b478-3e58e2c8fcae`")
	assert.Contains(t, text, "Bot Login Status: *Logged Out*")
	assert.Contains(t, text, "Latest Report Run ID: `run-9` | End Time: 2026-03-01 14:30:00 UTC")
}

func TestBuildDeveloperMessageWithoutEndTime(t *testing.T) {
	s := healthySummary()
	s.LatestLoginStatus = "Logged Out"
	s.LatestRunID = "run-9"

	msg := BuildDeveloperMessage(s, Evaluate(s))

	assert.Contains(t, msg.PlainText(), "End Time: N/A")
}

func TestBuildClientMessage(t *testing.T) {
	s := healthySummary()
	s.TotalFailedDownloads = 3
	s.LatestScraped = report.Payload{"total_users_scraped": float64(80)}

	d := Evaluate(s)
	msg := BuildClientMessage(s, d)

	text := msg.PlainText()
	assert.Contains(t, text, "Performance Report & Status Update for 'Profile Scraper'")
	assert.Contains(t, text, "Total Users Scraped: *80*")
	assert.Contains(t, text, "*Issue Report:*")
	assert.Contains(t, text, "3 files failed to download")
}

func TestBuildClientMessageWithoutMetrics(t *testing.T) {
	s := healthySummary()
	s.LatestScraped = report.Payload{}
	s.LatestEnrichment = report.Payload{}
	s.TotalRunsFailedException = 1

	d := Evaluate(s)
	msg := BuildClientMessage(s, d)

	text := msg.PlainText()
	assert.NotContains(t, text, "*Latest Run Status:*")
	assert.Contains(t, text, "*Issue Report:*")
}

func TestBuildManagerMessage(t *testing.T) {
	s := healthySummary()
	s.LatestLoginStatus = "Logged Out"

	d := Evaluate(s)
	msg := BuildManagerMessage(s, d)

	text := msg.PlainText()
	assert.Contains(t, text, "Manager Alert: Operational Issue for Profile Scraper")
	assert.Contains(t, text, "*Operational Issues:*")
	assert.Contains(t, text, "Bot Login Failure for task: *Profile Scraper*")
}

func TestBulleted(t *testing.T) {
	assert.Equal(t, "", bulleted(nil))
	assert.Equal(t, "- one", bulleted([]string{"one"}))
	assert.Equal(t, "- one\n- two", bulleted([]string{"one", "two"}))
}
