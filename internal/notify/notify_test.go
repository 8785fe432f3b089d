package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessage() Message {
	return Message{Blocks: []Block{
		Header("Alert for Profile Scraper"),
		FieldsSection([]Text{
			Field("*Task Name:* Profile Scraper"),
			Field("*Status:* Failed"),
		}),
		Section("*Reasons:*\n- something broke"),
		Context("Run ID: run-1"),
	}}
}

func TestMessagePlainText(t *testing.T) {
	text := sampleMessage().PlainText()

	assert.Contains(t, text, "Alert for Profile Scraper")
	assert.Contains(t, text, "*Task Name:* Profile Scraper")
	assert.Contains(t, text, "- something broke")
	assert.Contains(t, text, "Run ID: run-1")
}

func TestWebhookSenderPostsBlocks(t *testing.T) {
	var received Message
	var contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL)
	err := sender.Send(context.Background(), sampleMessage())

	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
	require.Len(t, received.Blocks, 4)
	assert.Equal(t, "header", received.Blocks[0].Type)
	assert.Equal(t, "Alert for Profile Scraper", received.Blocks[0].Text.Text)
}

func TestWebhookSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL)
	err := sender.Send(context.Background(), sampleMessage())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestWebhookSenderUnreachable(t *testing.T) {
	sender := NewWebhookSender("http://127.0.0.1:1/hook")
	err := sender.Send(context.Background(), sampleMessage())

	assert.Error(t, err)
}

func TestRouterRoutesByAudience(t *testing.T) {
	var devHits, clientHits int

	devSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		devHits++
		w.WriteHeader(http.StatusOK)
	}))
	defer devSrv.Close()

	clientSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		clientHits++
		w.WriteHeader(http.StatusOK)
	}))
	defer clientSrv.Close()

	router := NewRouter()
	router.Register(AudienceDeveloper, NewWebhookSender(devSrv.URL))
	router.Register(AudienceClient, NewWebhookSender(clientSrv.URL))

	require.NoError(t, router.Send(context.Background(), sampleMessage(), AudienceDeveloper))
	require.NoError(t, router.Send(context.Background(), sampleMessage(), AudienceClient))
	require.NoError(t, router.Send(context.Background(), sampleMessage(), AudienceDeveloper))

	assert.Equal(t, 2, devHits)
	assert.Equal(t, 1, clientHits)
}

func TestRouterMissingAudience(t *testing.T) {
	router := NewRouter()

	err := router.Send(context.Background(), sampleMessage(), AudienceManager)

	assert.Error(t, err)
}

func TestEmailSenderConstruction(t *testing.T) {
	s := NewEmailSender("key", "Botwatch", "alerts@example.com", "ops@example.com", "Botwatch alerts")

	require.NotNil(t, s)
	assert.Equal(t, "ops@example.com", s.to)
	assert.Equal(t, "Botwatch alerts", s.subject)
}
