package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/geo-location/pkg/tracking"
	"github.com/rs/zerolog"
)

// Config holds the service configuration, read from the environment.
// A local .env file is loaded first when present.
type Config struct {
	HTTPAddr     string
	GCPProjectID string
	UpdatesTopic string

	Source         string
	StaticLat      float64
	StaticLon      float64
	StaticAccuracy float64
	ReplayFile     string
	SampleInterval time.Duration
	SourceURL      string

	AccuracyThreshold float64
	PollInterval      time.Duration
	LogLevel          zerolog.Level
}

func loadConfig() (Config, error) {
	var err error
	cfg := Config{
		HTTPAddr:     getEnv("GEO_HTTP_ADDR", ":8080"),
		GCPProjectID: os.Getenv("GCP_PROJECT_ID"),
		UpdatesTopic: getEnv("GEO_UPDATES_TOPIC", "location-updates"),
		Source:       strings.ToLower(getEnv("GEO_SOURCE", "static")),
		ReplayFile:   os.Getenv("GEO_REPLAY_FILE"),
		SourceURL:    os.Getenv("GEO_SOURCE_URL"),
	}

	if cfg.StaticLat, err = getEnvFloat("GEO_STATIC_LAT", 0); err != nil {
		return Config{}, err
	}
	if cfg.StaticLon, err = getEnvFloat("GEO_STATIC_LON", 0); err != nil {
		return Config{}, err
	}
	if cfg.StaticAccuracy, err = getEnvFloat("GEO_STATIC_ACCURACY", 10); err != nil {
		return Config{}, err
	}
	if cfg.SampleInterval, err = getEnvDuration("GEO_SAMPLE_INTERVAL", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SampleInterval <= 0 {
		return Config{}, fmt.Errorf("GEO_SAMPLE_INTERVAL must be positive, got %s", cfg.SampleInterval)
	}
	if cfg.AccuracyThreshold, err = getEnvFloat("GEO_ACCURACY_THRESHOLD", tracking.GeoThreshold); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = getEnvDuration("GEO_POLL_INTERVAL", tracking.PollInterval); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("GEO_POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if cfg.LogLevel, err = zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	switch cfg.Source {
	case "static":
	case "replay":
		if cfg.ReplayFile == "" {
			return Config{}, fmt.Errorf("GEO_REPLAY_FILE is required when GEO_SOURCE=replay")
		}
	case "http":
		if cfg.SourceURL == "" {
			return Config{}, fmt.Errorf("GEO_SOURCE_URL is required when GEO_SOURCE=http")
		}
	default:
		return Config{}, fmt.Errorf("unknown GEO_SOURCE %q", cfg.Source)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
