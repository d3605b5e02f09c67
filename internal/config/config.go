// Package config defines service configuration and its loader.
package config

import (
	"context"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DefaultVariant is used by sessions and requests that name none.
	DefaultVariant string `koanf:"default_variant"`

	// HistoryCapacity bounds each session's attempt window.
	HistoryCapacity int `koanf:"history_capacity"`

	// MaxSessions caps live sessions; 0 means unlimited.
	MaxSessions int `koanf:"max_sessions"`

	// DedupeSize sets how many attempt IDs are remembered; 0 means unbounded.
	DedupeSize int `koanf:"dedupe_size"`

	// SessionGaugeInterval is how often the live-sessions gauge is refreshed.
	SessionGaugeInterval time.Duration `koanf:"session_gauge_interval"`

	// Metrics* shape the Prometheus names. Empty values keep the defaults.
	MetricsNamespace string            `koanf:"metrics_namespace"`
	MetricsSubsystem string            `koanf:"metrics_subsystem"`
	MetricsBuckets   []float64         `koanf:"metrics_buckets"`
	MetricsLabels    map[string]string `koanf:"metrics_labels"`
}

// New returns a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		DefaultVariant:  "classic",
		HistoryCapacity: 10,
		MaxSessions:     1000,
		DedupeSize:      10_000,

		SessionGaugeInterval: 5 * time.Second,
		MetricsNamespace:     "xsteal",
		MetricsSubsystem:     "scoring",
	}
}
