package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/app"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/drive"
	"github.com/andresuchdata/autopo-py/forecast-go/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.SetLevel(cfg.Server.LogLevel)
	logger.SetFormat(cfg.Server.LogFormat)

	ctx := context.Background()
	driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize Google Drive service")
	}

	stores, err := app.OpenStores(cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer stores.Close()
	if stores.Transactions == nil {
		logger.Log.Fatal().Str("driver", cfg.Database.Driver).Msg("ingestion needs a persistent database driver")
	}

	ingestService := drive.NewIngestService(driveService, stores.Transactions, domain.MalformedPolicy(cfg.Forecast.MalformedPolicy))

	r := mux.NewRouter()
	drive.NewHandler(driveService, driveService, ingestService, cfg.Drive.FolderID).RegisterRoutes(r)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("addr", srv.Addr).Msg("Ingest server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start ingest server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Ingest server forced to shutdown")
	}
}
