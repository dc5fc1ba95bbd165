package config

import "time"

const (
	DefaultPattern        = "**/*.prn"
	DefaultEncoding       = "auto"
	DefaultMeasurement    = "measurement"
	DefaultAuthScheme     = "Token"
	DefaultScanInterval   = 15 * time.Second
	DefaultBackendTimeout = 30 * time.Second
	DefaultConcurrency    = 4
	DefaultGraceCycles    = 2
	DefaultStatusCapacity = 100
	DefaultNotifySubject  = "prnpusher.uploads"
)

// Default returns a configuration with every default applied and no folder or backend set.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills unset values. It runs after normalization.
func applyDefaults(cfg *Config) {
	if cfg.Input.Pattern == "" {
		cfg.Input.Pattern = DefaultPattern
	}
	if cfg.Input.Encoding == "" {
		cfg.Input.Encoding = DefaultEncoding
	}
	if cfg.Backend.Measurement == "" {
		cfg.Backend.Measurement = DefaultMeasurement
	}
	if cfg.Backend.Precision == "" {
		cfg.Backend.Precision = PrecisionSeconds
	}
	if cfg.Backend.AuthScheme == "" {
		cfg.Backend.AuthScheme = DefaultAuthScheme
	}
	if cfg.Backend.Timeout == "" {
		cfg.Backend.Timeout = DefaultBackendTimeout.String()
	}
	if cfg.Backend.DryRunLedger == "" {
		cfg.Backend.DryRunLedger = DryRunPersist
	}
	if cfg.Backend.Retry.Mode == "" {
		cfg.Backend.Retry.Mode = RetryBackoffLinear
	}
	if cfg.Backend.Retry.InitialDelay == "" {
		cfg.Backend.Retry.InitialDelay = "1s"
	}
	if cfg.Backend.Retry.MaxDelay == "" {
		cfg.Backend.Retry.MaxDelay = "10s"
	}
	if cfg.Ledger.CorruptPolicy == "" {
		cfg.Ledger.CorruptPolicy = CorruptReset
	}
	if cfg.Scan.Interval == "" {
		cfg.Scan.Interval = DefaultScanInterval.String()
	}
	if cfg.Scan.Concurrency <= 0 {
		cfg.Scan.Concurrency = DefaultConcurrency
	}
	if cfg.Scan.GraceCycles <= 0 {
		cfg.Scan.GraceCycles = DefaultGraceCycles
	}
	if cfg.Status.Capacity <= 0 {
		cfg.Status.Capacity = DefaultStatusCapacity
	}
	if cfg.Notify.NATSURL != "" && cfg.Notify.Subject == "" {
		cfg.Notify.Subject = DefaultNotifySubject
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
}
