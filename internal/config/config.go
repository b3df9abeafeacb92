// Package config loads and validates the forwarder's environment variables
// into a single immutable Config, the way the teacher's clientconf package
// turns scattered my.cnf/flag sources into one mysql.Config: every problem
// found is appended to a multierror instead of failing on the first one, so
// an operator sees every misconfigured variable in a single run.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Config is an immutable snapshot of every tunable in spec.md §6 and
// SPEC_FULL.md §6. It is built once at startup and never mutated afterward.
type Config struct {
	AiSEG2URL      string
	AiSEG2User     string
	AiSEG2Password string

	InfluxDBURL    string
	InfluxDBToken  string
	InfluxDBOrg    string
	InfluxDBBucket string

	LogLevel  string
	LogFormat string

	StatusInterval       time.Duration
	TotalInterval        time.Duration
	TotalInitialDays     int
	CollectorTaskTimeout time.Duration

	BreakerFailureThreshold         int
	BreakerRecoveryTimeout          time.Duration
	BreakerHalfOpenSuccessThreshold int
	BreakerHalfOpenFailureThreshold int

	MetricsAddr string
}

// required reads a required string env var, appending to *errs if unset.
func required(errs **multierror.Error, name string) string {
	v := os.Getenv(name)
	if v == "" {
		*errs = multierror.Append(*errs, fmt.Errorf("%s: required but not set", name))
	}
	return v
}

// positiveIntSeconds reads an optional env var as a positive integer number
// of seconds, falling back to def. A present-but-unparseable or non-positive
// value is an error.
func positiveIntSeconds(errs **multierror.Error, name string, def int) time.Duration {
	return time.Duration(positiveInt(errs, name, def)) * time.Second
}

func positiveInt(errs **multierror.Error, name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = multierror.Append(*errs, fmt.Errorf("%s: not an integer: %v", name, err))
		return def
	}
	if n <= 0 {
		*errs = multierror.Append(*errs, fmt.Errorf("%s: must be positive, got %d", name, n))
		return def
	}
	return n
}

func optional(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// Load reads the process environment and returns a validated Config. All
// validation failures are returned together in one *multierror.Error; if it
// is non-nil, the caller must not start the supervisor.
func Load() (Config, error) {
	var errs *multierror.Error

	cfg := Config{
		AiSEG2URL:      required(&errs, "AISEG2_URL"),
		AiSEG2User:     required(&errs, "AISEG2_USER"),
		AiSEG2Password: required(&errs, "AISEG2_PASSWORD"),

		InfluxDBURL:    required(&errs, "INFLUXDB_URL"),
		InfluxDBToken:  required(&errs, "INFLUXDB_TOKEN"),
		InfluxDBOrg:    required(&errs, "INFLUXDB_ORG"),
		InfluxDBBucket: required(&errs, "INFLUXDB_BUCKET"),

		LogLevel:  optional("LOG_LEVEL", "info"),
		LogFormat: optional("LOG_FORMAT", "console"),

		MetricsAddr: optional("METRICS_ADDR", "127.0.0.1:9090"),
	}

	cfg.StatusInterval = positiveIntSeconds(&errs, "COLLECTOR_STATUS_INTERVAL_SEC", 5)
	cfg.TotalInterval = positiveIntSeconds(&errs, "COLLECTOR_TOTAL_INTERVAL_SEC", 60)
	cfg.TotalInitialDays = positiveInt(&errs, "COLLECTOR_TOTAL_INITIAL_DAYS", 30)
	cfg.CollectorTaskTimeout = positiveIntSeconds(&errs, "COLLECTOR_TASK_TIMEOUT_SECONDS", 10)

	cfg.BreakerFailureThreshold = positiveInt(&errs, "CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5)
	cfg.BreakerRecoveryTimeout = positiveIntSeconds(&errs, "CIRCUIT_BREAKER_RECOVERY_TIMEOUT_SECONDS", 60)
	cfg.BreakerHalfOpenSuccessThreshold = positiveInt(&errs, "CIRCUIT_BREAKER_HALF_OPEN_SUCCESS_THRESHOLD", 3)
	cfg.BreakerHalfOpenFailureThreshold = positiveInt(&errs, "CIRCUIT_BREAKER_HALF_OPEN_FAILURE_THRESHOLD", 1)

	return cfg, errs.ErrorOrNil()
}
