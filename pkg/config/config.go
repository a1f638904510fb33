// Package config loads and validates survey core configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the surveyd process.
type Config struct {
	// FormPath is the filesystem path to the JSON form definition loaded
	// at startup (§4.1; the XLSForm spreadsheet wire format itself is a
	// Non-goal, so this is a demonstration adapter format, not a wire
	// format implementation).
	FormPath string

	// GarblingParamsPath is the filesystem path to the JSON document
	// describing which questions are garbled and at what rate (§4.5).
	// Empty means no question is garbled.
	GarblingParamsPath string

	// RespondentRosterPath and EnumeratorRosterPath are optional CSV
	// files loaded into storage at startup (§6). Empty means skip.
	RespondentRosterPath string
	EnumeratorRosterPath string

	// StorageDSN is the modernc.org/sqlite data source name. Defaults to
	// an on-disk file; ":memory:" is valid for ephemeral runs.
	StorageDSN string

	// SessionIdleTimeout is the idle duration for in-memory sessions
	// (§5). surveyd reads and logs it; no eviction sweep runs with it.
	SessionIdleTimeout time.Duration

	// MetricsAddr is the listen address for the HTTP health/metrics server.
	MetricsAddr string

	// EnableS3Backup turns on periodic CSV export backups to S3. This
	// replaces the teacher's STORE_BACKEND=memory|s3 switch: the
	// Persistence Adapter here is always sqlite, and S3 is strictly an
	// archival sink layered on top, not an alternate source of truth.
	EnableS3Backup bool

	// S3Bucket is the destination bucket. Required when EnableS3Backup.
	S3Bucket string

	// S3KeyPrefix is the key prefix under which the submissions export is
	// written. Default: "safely-report".
	S3KeyPrefix string

	// S3Region is the AWS region for the S3 client. Default: "us-east-1".
	S3Region string

	// S3Endpoint is an optional custom S3 endpoint URL (MinIO, LocalStack).
	S3Endpoint string

	// S3BackupInterval is how often the submissions export is persisted
	// to S3 when EnableS3Backup is set.
	S3BackupInterval time.Duration
}

const (
	defaultStorageDSN         = "safely-report.db"
	defaultSessionIdleTimeout = 30 * time.Minute
	defaultMetricsAddr        = ":8080"
	defaultS3KeyPrefix        = "safely-report"
	defaultS3Region           = "us-east-1"
	defaultS3BackupInterval   = 5 * time.Minute
)

// Load reads configuration from environment variables and returns a
// validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		StorageDSN:         defaultStorageDSN,
		SessionIdleTimeout: defaultSessionIdleTimeout,
		MetricsAddr:        defaultMetricsAddr,
		S3KeyPrefix:        defaultS3KeyPrefix,
		S3Region:           defaultS3Region,
		S3BackupInterval:   defaultS3BackupInterval,
	}

	// Required: FORM_PATH.
	cfg.FormPath = os.Getenv("FORM_PATH")
	if cfg.FormPath == "" {
		return nil, fmt.Errorf("FORM_PATH is required")
	}

	cfg.GarblingParamsPath = os.Getenv("GARBLING_PARAMS_PATH")
	cfg.RespondentRosterPath = os.Getenv("RESPONDENT_ROSTER_PATH")
	cfg.EnumeratorRosterPath = os.Getenv("ENUMERATOR_ROSTER_PATH")

	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.StorageDSN = v
	}

	if v := os.Getenv("SESSION_IDLE_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("SESSION_IDLE_TIMEOUT_SECONDS must be a positive integer, got %q", v)
		}
		cfg.SessionIdleTimeout = time.Duration(n) * time.Second
	}

	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	cfg.EnableS3Backup = os.Getenv("ENABLE_S3_BACKUP") == "true"

	cfg.S3Bucket = os.Getenv("S3_BUCKET")
	if v := os.Getenv("S3_KEY_PREFIX"); v != "" {
		cfg.S3KeyPrefix = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		cfg.S3Region = v
	}
	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")

	if v := os.Getenv("S3_BACKUP_INTERVAL_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("S3_BACKUP_INTERVAL_SECONDS must be a positive integer, got %q", v)
		}
		cfg.S3BackupInterval = time.Duration(n) * time.Second
	}

	if cfg.EnableS3Backup && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when ENABLE_S3_BACKUP=true")
	}

	if strings.Contains(cfg.S3KeyPrefix, "..") {
		return nil, fmt.Errorf("S3_KEY_PREFIX must not contain '..', got %q", cfg.S3KeyPrefix)
	}
	cfg.S3KeyPrefix = strings.Trim(cfg.S3KeyPrefix, "/")
	if cfg.S3KeyPrefix == "" {
		cfg.S3KeyPrefix = defaultS3KeyPrefix
	}

	return cfg, nil
}
