package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envFiles are loaded in order before the configuration is expanded. Existing
// process environment variables are never overridden.
var envFiles = []string{".env", ".env.local"}

// Load reads, expands, normalizes, defaults and validates a configuration file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration content. Environment references such as
// ${INFLUX_TOKEN} are expanded before decoding.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = CurrentVersion
	}
	if err := normalize(&cfg); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func loadEnvFiles() {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			slog.Warn("Failed to load environment file", "path", f, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "path", f)
	}
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Default()
	example.Input.Folder = "./data"
	example.Backend = BackendConfig{
		URL:          "http://localhost:8086/api/v2/write",
		Org:          "my-org",
		Bucket:       "instruments",
		Token:        "${INFLUX_TOKEN}",
		Measurement:  "env",
		Precision:    PrecisionSeconds,
		AuthScheme:   DefaultAuthScheme,
		Timeout:      DefaultBackendTimeout.String(),
		DryRunLedger: DryRunPersist,
		Retry:        example.Backend.Retry,
	}
	example.Fields.Enabled = []string{"TempC"}
	example.Admin.Listen = "127.0.0.1:8090"

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	slog.Info("Example configuration written", "path", configPath)
	return nil
}
