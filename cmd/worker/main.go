package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vividmind/botwatch/internal/alert"
	"github.com/vividmind/botwatch/internal/config"
	"github.com/vividmind/botwatch/internal/notify"
	"github.com/vividmind/botwatch/internal/queue"
	"github.com/vividmind/botwatch/internal/storage"
	"github.com/vividmind/botwatch/internal/summary"
	"github.com/vividmind/botwatch/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	store, err := storage.NewPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal(err)
	}

	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("failed to close Postgres: %v", err)
		}
	}()

	q, err := queue.NewQueue(cfg.RedisAddr)
	if err != nil {
		log.Fatal(err)
	}

	defer func() {
		if err := q.Close(); err != nil {
			log.Printf("failed to close queue: %v", err)
		}
	}()

	router := buildRouter(cfg)
	refresher := summary.NewRefresher(store)
	dispatcher := alert.NewDispatcher(router, store)

	w := worker.NewWorker(cfg.WorkerID, q, refresher, dispatcher)
	w.SetPollInterval(cfg.PollInterval)
	w.SetMaxRetries(cfg.MaxRetries)

	go w.Start()
	go startRefreshAllScheduler(store, q, cfg.RefreshAllInterval)
	go startAlertSweep(store, dispatcher, cfg.AlertSweepInterval, cfg.AlertSweepWindow)
	go startQueueDepthCollector(q)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down worker...")
	w.Stop()
}

func buildRouter(cfg *config.Config) *notify.Router {
	router := notify.NewRouter()

	webhooks := map[notify.Audience]string{
		notify.AudienceDeveloper: cfg.DeveloperWebhookURL,
		notify.AudienceClient:    cfg.ClientWebhookURL,
		notify.AudienceManager:   cfg.ManagerWebhookURL,
	}

	for audience, url := range webhooks {
		if url != "" {
			router.Register(audience, notify.NewWebhookSender(url))
			continue
		}
		if cfg.SendgridAPIKey != "" && cfg.EmailTo != "" {
			subject := fmt.Sprintf("Botwatch alerts (%s)", audience)
			router.Register(audience, notify.NewEmailSender(
				cfg.SendgridAPIKey, cfg.EmailFromName, cfg.EmailFrom, cfg.EmailTo, subject,
			))
			continue
		}
		log.Printf("No destination configured for audience %s", audience)
	}

	return router
}
