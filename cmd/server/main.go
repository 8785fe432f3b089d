package main

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vividmind/botwatch/internal/api"
	"github.com/vividmind/botwatch/internal/config"
	"github.com/vividmind/botwatch/internal/middleware"
	"github.com/vividmind/botwatch/internal/queue"
	"github.com/vividmind/botwatch/internal/storage"
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

	apiHandler := api.NewAPI(store, q)

	mux := http.NewServeMux()
	mux.Handle("/api/", middleware.MetricsMiddleware(apiHandler))
	mux.Handle("/metrics", promhttp.Handler())

	log.Printf("Server starting on :%s", cfg.Port)
	log.Printf("Connected to Redis at %s", cfg.RedisAddr)

	if err := http.ListenAndServe(":"+cfg.Port, mux); err != nil {
		log.Fatal(err)
	}
}
