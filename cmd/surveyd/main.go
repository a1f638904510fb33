// Package main is the entrypoint for the survey core process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sylvaingchassang/ddss-safely-report/pkg/config"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/formload"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/garbling"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/metrics"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/roster"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/server"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/session"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/storage"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("surveyd starting",
		"version", version,
		"commit", commit,
		"date", date,
	)

	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	slog.Info("configuration loaded",
		"form_path", cfg.FormPath,
		"storage_dsn", cfg.StorageDSN,
		"session_idle_timeout", cfg.SessionIdleTimeout,
		"metrics_addr", cfg.MetricsAddr,
		"enable_s3_backup", cfg.EnableS3Backup,
	)

	model, err := loadForm(cfg.FormPath)
	if err != nil {
		return fmt.Errorf("load form: %w", err)
	}
	slog.Info("form loaded", "languages", model.Form.Languages)

	var garblingParams map[string]garbling.Params
	if cfg.GarblingParamsPath != "" {
		garblingParams, err = loadGarblingParams(cfg.GarblingParamsPath, model)
		if err != nil {
			return fmt.Errorf("load garbling params: %w", err)
		}
		slog.Info("garbling params loaded", "questions", len(garblingParams))
	}

	store, err := storage.Open(cfg.StorageDSN)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := loadRosters(ctx, cfg, store); err != nil {
		return fmt.Errorf("load rosters: %w", err)
	}

	sessions := session.NewManager()
	// garbling.New(garblingParams, store) backs a respondent submission
	// handler; no such handler is wired here since HTTP routing is out
	// of scope for this process (§1 Non-goal).

	if cfg.EnableS3Backup {
		s3Client, err := storage.NewS3Client(ctx, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return fmt.Errorf("create S3 client: %w", err)
		}
		backup := storage.NewS3Backup(store, s3Client, cfg.S3Bucket, cfg.S3KeyPrefix)
		go runS3BackupLoop(ctx, backup, cfg.S3BackupInterval)
	}

	srv := server.New(cfg.MetricsAddr, sessions)
	go func() {
		if err := srv.Run(ctx); err != nil {
			slog.Error("metrics server error", "error", err)
			cancel()
		}
	}()
	srv.SetReady()

	slog.Info("surveyd running", "metrics_addr", cfg.MetricsAddr)

	<-ctx.Done()
	slog.Info("shutdown complete")
	return nil
}

func loadForm(path string) (*formload.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return formload.LoadJSON(f)
}

func loadGarblingParams(path string, model *formload.Model) (map[string]garbling.Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	raw, err := garbling.LoadRawParams(f)
	if err != nil {
		return nil, err
	}
	return garbling.ParseGarblingParams(model.Form, raw)
}

func loadRosters(ctx context.Context, cfg *config.Config, store *storage.Adapter) error {
	if cfg.RespondentRosterPath != "" {
		f, err := os.Open(cfg.RespondentRosterPath)
		if err != nil {
			return err
		}
		n, err := roster.LoadRespondents(ctx, store, f)
		f.Close()
		if err != nil {
			return err
		}
		slog.Info("respondent roster loaded", "rows", n)
	}
	if cfg.EnumeratorRosterPath != "" {
		f, err := os.Open(cfg.EnumeratorRosterPath)
		if err != nil {
			return err
		}
		n, err := roster.LoadEnumerators(ctx, store, f)
		f.Close()
		if err != nil {
			return err
		}
		slog.Info("enumerator roster loaded", "rows", n)
	}
	return nil
}

// runS3BackupLoop periodically snapshots the submissions CSV export to
// S3 until ctx is cancelled, mirroring the teacher's poller loop shape.
func runS3BackupLoop(ctx context.Context, backup *storage.S3Backup, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if err := backup.Persist(ctx); err != nil {
				slog.Error("S3 backup failed", "error", err)
				continue
			}
			metrics.S3PersistDuration.Observe(time.Since(start).Seconds())
		}
	}
}
