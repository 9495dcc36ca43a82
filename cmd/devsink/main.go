// Command devsink is a local development collector for the telemetry SDK.
// It accepts batch payloads on the delivery endpoint and logs their
// contents, making the wire format visible while developing the host
// application. It performs no storage and no validation beyond decoding.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/harborapp/telemetry/internal/domain/entities"
	"github.com/harborapp/telemetry/internal/infrastructure/observability"
)

func main() {
	// Load .env if present; environment variables win.
	_ = godotenv.Load()

	observability.InitLogger("telemetry-devsink", getEnv("APP_ENV", "development"))

	port := getEnv("DEVSINK_PORT", "8099")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/api/telemetry/events", handleBatch)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("devsink listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("devsink server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("devsink shutdown failed")
	}
	log.Info().Msg("devsink stopped")
}

func handleBatch(w http.ResponseWriter, r *http.Request) {
	var batch entities.Batch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, fmt.Sprintf("bad batch: %v", err), http.StatusBadRequest)
		return
	}

	log.Info().
		Int("schema_version", batch.SchemaVersion).
		Str("mode", string(batch.Mode)).
		Int("events", len(batch.Events)).
		Msg("batch received")
	for _, event := range batch.Events {
		payload, _ := json.Marshal(event)
		log.Info().RawJSON("event", payload).Msg("")
	}

	w.WriteHeader(http.StatusAccepted)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
