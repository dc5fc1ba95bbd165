package config

import (
	"fmt"
	"strings"
)

// normalize case-folds enumerations. Invalid values are errors rather than silent defaults,
// since a typo in precision would shift every timestamp.
func normalize(cfg *Config) error {
	var err error
	if cfg.Backend.Precision, err = precisionNormalizer.NormalizeWithError(string(cfg.Backend.Precision)); err != nil {
		return fmt.Errorf("backend.precision: %w", err)
	}
	if cfg.Backend.DryRunLedger, err = dryRunNormalizer.NormalizeWithError(string(cfg.Backend.DryRunLedger)); err != nil {
		return fmt.Errorf("backend.dry_run_ledger: %w", err)
	}
	if cfg.Backend.Retry.Mode, err = retryNormalizer.NormalizeWithError(string(cfg.Backend.Retry.Mode)); err != nil {
		return fmt.Errorf("backend.retry.mode: %w", err)
	}
	if cfg.Ledger.CorruptPolicy, err = corruptNormalizer.NormalizeWithError(string(cfg.Ledger.CorruptPolicy)); err != nil {
		return fmt.Errorf("ledger.corrupt_policy: %w", err)
	}
	cfg.Logging.Level = logLevelNormalizer.Normalize(string(cfg.Logging.Level))
	cfg.Logging.Format = logFormatNormalizer.Normalize(string(cfg.Logging.Format))

	cfg.Input.Folder = strings.TrimSpace(cfg.Input.Folder)
	cfg.Input.Encoding = strings.ToLower(strings.TrimSpace(cfg.Input.Encoding))
	cfg.Backend.URL = strings.TrimSpace(cfg.Backend.URL)
	cfg.Backend.Token = strings.TrimSpace(cfg.Backend.Token)

	fields := cfg.Fields.Enabled[:0]
	for _, f := range cfg.Fields.Enabled {
		if strings.TrimSpace(f) != "" {
			fields = append(fields, f)
		}
	}
	cfg.Fields.Enabled = fields
	return nil
}
