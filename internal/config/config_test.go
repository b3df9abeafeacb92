package config

import (
	"os"
	"testing"

	"github.com/hashicorp/go-multierror"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"AISEG2_URL", "AISEG2_USER", "AISEG2_PASSWORD",
		"INFLUXDB_URL", "INFLUXDB_TOKEN", "INFLUXDB_ORG", "INFLUXDB_BUCKET",
		"LOG_LEVEL", "LOG_FORMAT", "METRICS_ADDR",
		"COLLECTOR_STATUS_INTERVAL_SEC", "COLLECTOR_TOTAL_INTERVAL_SEC",
		"COLLECTOR_TOTAL_INITIAL_DAYS", "COLLECTOR_TASK_TIMEOUT_SECONDS",
		"CIRCUIT_BREAKER_FAILURE_THRESHOLD", "CIRCUIT_BREAKER_RECOVERY_TIMEOUT_SECONDS",
		"CIRCUIT_BREAKER_HALF_OPEN_SUCCESS_THRESHOLD", "CIRCUIT_BREAKER_HALF_OPEN_FAILURE_THRESHOLD",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	os.Setenv("AISEG2_URL", "http://aiseg.local")
	os.Setenv("AISEG2_USER", "user")
	os.Setenv("AISEG2_PASSWORD", "pass")
	os.Setenv("INFLUXDB_URL", "http://influx.local:8086")
	os.Setenv("INFLUXDB_TOKEN", "token")
	os.Setenv("INFLUXDB_ORG", "org")
	os.Setenv("INFLUXDB_BUCKET", "bucket")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.StatusInterval.Seconds() != 5 {
		t.Errorf("StatusInterval = %s, want 5s", cfg.StatusInterval)
	}
	if cfg.TotalInterval.Seconds() != 60 {
		t.Errorf("TotalInterval = %s, want 60s", cfg.TotalInterval)
	}
	if cfg.TotalInitialDays != 30 {
		t.Errorf("TotalInitialDays = %d, want 30", cfg.TotalInitialDays)
	}
	if cfg.BreakerFailureThreshold != 5 {
		t.Errorf("BreakerFailureThreshold = %d, want 5", cfg.BreakerFailureThreshold)
	}
	if cfg.BreakerHalfOpenSuccessThreshold != 3 {
		t.Errorf("BreakerHalfOpenSuccessThreshold = %d, want 3", cfg.BreakerHalfOpenSuccessThreshold)
	}
	if cfg.BreakerHalfOpenFailureThreshold != 1 {
		t.Errorf("BreakerHalfOpenFailureThreshold = %d, want 1", cfg.BreakerHalfOpenFailureThreshold)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.MetricsAddr != "127.0.0.1:9090" {
		t.Errorf("MetricsAddr = %q, want 127.0.0.1:9090", cfg.MetricsAddr)
	}
}

func TestLoadMissingRequiredAccumulates(t *testing.T) {
	clearEnv(t)
	// Only set a subset; the rest stay missing.
	os.Setenv("AISEG2_URL", "http://aiseg.local")
	os.Setenv("INFLUXDB_URL", "http://influx.local:8086")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	merr, ok := err.(*multierror.Error)
	if !ok {
		t.Fatalf("expected *multierror.Error, got %T", err)
	}
	// AISEG2_USER, AISEG2_PASSWORD, INFLUXDB_TOKEN, INFLUXDB_ORG, INFLUXDB_BUCKET missing.
	if len(merr.Errors) != 5 {
		t.Errorf("got %d errors, want 5: %v", len(merr.Errors), merr.Errors)
	}
}

func TestLoadInvalidInterval(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	os.Setenv("COLLECTOR_STATUS_INTERVAL_SEC", "0")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for non-positive interval, got nil")
	}
}

func TestLoadUnparseableInterval(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	os.Setenv("COLLECTOR_TASK_TIMEOUT_SECONDS", "not-a-number")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for unparseable interval, got nil")
	}
}
