package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"github.com/gorilla/mux"
	"github.com/illmade-knight/geo-location/app"
	"github.com/illmade-knight/geo-location/internal/api"
	"github.com/illmade-knight/geo-location/internal/clients"
	"github.com/illmade-knight/geo-location/internal/publishing"
	"github.com/illmade-knight/geo-location/internal/sources"
	firestorestorage "github.com/illmade-knight/geo-location/internal/storage/firestore"
	"github.com/illmade-knight/geo-location/internal/telemetry"
	"github.com/illmade-knight/geo-location/pkg/locations"
	"github.com/illmade-knight/geo-location/pkg/tracking"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg("No .env file found (using environment variables)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error().Err(err).Msg("Geo-location service failed")
		stop()
		os.Exit(1)
	}
}

// run wires and serves the service until ctx is cancelled. Every client it
// opens is closed before it returns.
func run(ctx context.Context, logger zerolog.Logger) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	// 1. Load Configuration
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger = logger.Level(cfg.LogLevel)
	telemetry.InitMetrics()

	// 2. Storage and update fan-out
	var store locations.Store = locations.NewInMemoryStore()
	var publisher app.UpdatePublisher
	if cfg.GCPProjectID != "" {
		fsClient, err := firestore.NewClient(ctx, cfg.GCPProjectID)
		if err != nil {
			return fmt.Errorf("failed to create Firestore client: %w", err)
		}
		defer fsClient.Close()
		store = firestorestorage.NewLocationsStore(fsClient)

		psClient, err := pubsub.NewClient(ctx, cfg.GCPProjectID)
		if err != nil {
			return fmt.Errorf("failed to create Pub/Sub client: %w", err)
		}
		defer psClient.Close()
		pub := publishing.NewPubsubPublisher(psClient.Publisher(cfg.UpdatesTopic), logger)
		defer pub.Stop()
		publisher = pub
		logger.Info().Str("project_id", cfg.GCPProjectID).Str("topic", cfg.UpdatesTopic).Msg("Firestore storage and Pub/Sub publishing enabled")
	} else {
		logger.Info().Msg("GCP_PROJECT_ID not set, using in-memory storage without publishing")
	}

	// 3. Position source
	source, err := newSource(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create position source: %w", err)
	}

	// 4. Application
	locationSvc := locations.NewService(store, logger)
	application := app.New(locationSvc, source, publisher, logger,
		tracking.WithAccuracyThreshold(cfg.AccuracyThreshold),
		tracking.WithPollInterval(cfg.PollInterval),
	)
	defer application.Shutdown()

	// 5. HTTP server
	root := mux.NewRouter()
	root.Handle("/metrics", promhttp.Handler())
	root.PathPrefix("/").Handler(api.NewRouter(application, logger))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("source", cfg.Source).Msg("Geo-location service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	default:
		return nil
	}
}

func newSource(cfg Config, logger zerolog.Logger) (tracking.PositionSource, error) {
	switch cfg.Source {
	case "replay":
		return sources.LoadReplayFile(cfg.ReplayFile, cfg.SampleInterval, logger)
	case "http":
		return clients.NewPositionServiceClient(cfg.SourceURL, cfg.SampleInterval, logger), nil
	default:
		return sources.NewStaticSource(cfg.StaticLat, cfg.StaticLon, cfg.StaticAccuracy), nil
	}
}
