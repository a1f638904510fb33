package config

import (
	"os"
	"testing"
	"time"
)

func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	keys := []string{
		"FORM_PATH", "GARBLING_PARAMS_PATH", "RESPONDENT_ROSTER_PATH",
		"ENUMERATOR_ROSTER_PATH", "STORAGE_DSN", "SESSION_IDLE_TIMEOUT_SECONDS",
		"METRICS_ADDR", "ENABLE_S3_BACKUP", "S3_BUCKET", "S3_KEY_PREFIX",
		"S3_REGION", "S3_ENDPOINT", "S3_BACKUP_INTERVAL_SECONDS",
	}
	for _, k := range keys {
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("failed to unset %s: %v", k, err)
		}
	}
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnvs(t, map[string]string{"FORM_PATH": "testdata/form.json"})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StorageDSN != "safely-report.db" {
		t.Errorf("unexpected default DSN: %s", cfg.StorageDSN)
	}
	if cfg.SessionIdleTimeout != 30*time.Minute {
		t.Errorf("unexpected default idle timeout: %s", cfg.SessionIdleTimeout)
	}
	if cfg.MetricsAddr != ":8080" {
		t.Errorf("unexpected default metrics addr: %s", cfg.MetricsAddr)
	}
	if cfg.EnableS3Backup {
		t.Error("expected S3 backup disabled by default")
	}
}

func TestLoad_MissingFormPath(t *testing.T) {
	setEnvs(t, map[string]string{})
	if _, err := Load(); err == nil {
		t.Error("expected error when FORM_PATH is missing")
	}
}

func TestLoad_InvalidSessionIdleTimeout(t *testing.T) {
	setEnvs(t, map[string]string{
		"FORM_PATH":                    "testdata/form.json",
		"SESSION_IDLE_TIMEOUT_SECONDS": "not-a-number",
	})
	if _, err := Load(); err == nil {
		t.Error("expected error for invalid SESSION_IDLE_TIMEOUT_SECONDS")
	}
}

func TestLoad_S3BackupRequiresBucket(t *testing.T) {
	setEnvs(t, map[string]string{
		"FORM_PATH":        "testdata/form.json",
		"ENABLE_S3_BACKUP": "true",
	})
	if _, err := Load(); err == nil {
		t.Error("expected error when ENABLE_S3_BACKUP=true but S3_BUCKET is missing")
	}
}

func TestLoad_S3BackupAllOptions(t *testing.T) {
	setEnvs(t, map[string]string{
		"FORM_PATH":                  "testdata/form.json",
		"ENABLE_S3_BACKUP":           "true",
		"S3_BUCKET":                  "my-submissions",
		"S3_KEY_PREFIX":              "prod/safely-report",
		"S3_REGION":                  "eu-west-1",
		"S3_ENDPOINT":                "http://minio:9000",
		"S3_BACKUP_INTERVAL_SECONDS": "60",
	})
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.S3Bucket != "my-submissions" {
		t.Errorf("unexpected bucket: %s", cfg.S3Bucket)
	}
	if cfg.S3KeyPrefix != "prod/safely-report" {
		t.Errorf("unexpected key prefix: %s", cfg.S3KeyPrefix)
	}
	if cfg.S3BackupInterval != 60*time.Second {
		t.Errorf("unexpected backup interval: %s", cfg.S3BackupInterval)
	}
}

func TestLoad_S3KeyPrefixRejectsDotDot(t *testing.T) {
	setEnvs(t, map[string]string{
		"FORM_PATH":        "testdata/form.json",
		"ENABLE_S3_BACKUP": "true",
		"S3_BUCKET":        "my-submissions",
		"S3_KEY_PREFIX":    "../escape",
	})
	if _, err := Load(); err == nil {
		t.Error("expected error for S3_KEY_PREFIX containing '..'")
	}
}

func TestLoad_RosterPathsOptional(t *testing.T) {
	setEnvs(t, map[string]string{
		"FORM_PATH":              "testdata/form.json",
		"RESPONDENT_ROSTER_PATH": "testdata/respondents.csv",
	})
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RespondentRosterPath != "testdata/respondents.csv" {
		t.Errorf("unexpected respondent roster path: %s", cfg.RespondentRosterPath)
	}
	if cfg.EnumeratorRosterPath != "" {
		t.Errorf("expected empty enumerator roster path, got %s", cfg.EnumeratorRosterPath)
	}
}
