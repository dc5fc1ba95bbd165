package config

import (
	"time"
)

// CurrentVersion is the only configuration schema version accepted by Load.
const CurrentVersion = "1.0"

// Config is the prnpusher configuration file.
type Config struct {
	Version string        `yaml:"version"`
	Input   InputConfig   `yaml:"input"`
	Backend BackendConfig `yaml:"backend"`
	Fields  FieldsConfig  `yaml:"fields,omitempty"`
	Ledger  LedgerConfig  `yaml:"ledger,omitempty"`
	Scan    ScanConfig    `yaml:"scan,omitempty"`
	Status  StatusConfig  `yaml:"status,omitempty"`
	Notify  NotifyConfig  `yaml:"notify,omitempty"`
	Admin   AdminConfig   `yaml:"admin,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// InputConfig describes the watched folder of PRN files.
type InputConfig struct {
	Folder   string `yaml:"folder"`
	Pattern  string `yaml:"pattern,omitempty"`  // doublestar glob relative to Folder
	Encoding string `yaml:"encoding,omitempty"` // "auto" or an htmlindex encoding name
	Timezone string `yaml:"timezone,omitempty"` // IANA name used for the date/time columns
}

// BackendConfig holds the metrics backend write parameters.
type BackendConfig struct {
	URL          string       `yaml:"url"`
	Org          string       `yaml:"org"`
	Bucket       string       `yaml:"bucket"`
	Token        string       `yaml:"token,omitempty"`
	Measurement  string       `yaml:"measurement,omitempty"`
	Precision    Precision    `yaml:"precision,omitempty"`
	AuthScheme   string       `yaml:"auth_scheme,omitempty"`
	Timeout      string       `yaml:"timeout,omitempty"`
	RateLimit    float64      `yaml:"rate_limit,omitempty"` // requests per second, 0 = unlimited
	DryRunLedger DryRunLedger `yaml:"dry_run_ledger,omitempty"`
	Retry        RetryConfig  `yaml:"retry,omitempty"`
}

// RetryConfig configures in-call upload retries for transient failures.
type RetryConfig struct {
	Mode         RetryBackoffMode `yaml:"mode,omitempty"`
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
	MaxRetries   int              `yaml:"max_retries,omitempty"`
}

// FieldsConfig lists the field names enabled for forwarding.
type FieldsConfig struct {
	Enabled []string `yaml:"enabled,omitempty"`
}

// LedgerConfig controls the sidecar sent-ledger.
type LedgerConfig struct {
	CorruptPolicy CorruptPolicy `yaml:"corrupt_policy,omitempty"`
}

// ScanConfig controls the periodic scan cycle.
type ScanConfig struct {
	Interval    string `yaml:"interval,omitempty"`
	Concurrency int    `yaml:"concurrency,omitempty"`
	GraceCycles int    `yaml:"grace_cycles,omitempty"`
}

// StatusConfig controls the human-readable status message log.
type StatusConfig struct {
	Capacity int    `yaml:"capacity,omitempty"`
	Store    string `yaml:"store,omitempty"` // optional SQLite path
}

// NotifyConfig enables publishing upload events to NATS JetStream.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// AdminConfig enables the admin HTTP server.
type AdminConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// ScanInterval returns the parsed scan interval. Callers rely on validation having run.
func (c *Config) ScanInterval() time.Duration {
	d, err := time.ParseDuration(c.Scan.Interval)
	if err != nil || d <= 0 {
		return DefaultScanInterval
	}
	return d
}

// BackendTimeout returns the parsed HTTP timeout for writes.
func (c *Config) BackendTimeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.Timeout)
	if err != nil || d <= 0 {
		return DefaultBackendTimeout
	}
	return d
}

// Location resolves Input.Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	switch c.Input.Timezone {
	case "", "Local", "local":
		return time.Local
	}
	loc, err := time.LoadLocation(c.Input.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Clone returns a deep copy so a reload never mutates a snapshot in use by a running cycle.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Fields.Enabled = append([]string(nil), c.Fields.Enabled...)
	return &out
}
