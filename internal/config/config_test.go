package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("version: \"1.0\"\ninput:\n  folder: /data\n"))
	require.NoError(t, err)

	require.Equal(t, "/data", cfg.Input.Folder)
	require.Equal(t, DefaultPattern, cfg.Input.Pattern)
	require.Equal(t, DefaultMeasurement, cfg.Backend.Measurement)
	require.Equal(t, PrecisionSeconds, cfg.Backend.Precision)
	require.Equal(t, DryRunPersist, cfg.Backend.DryRunLedger)
	require.Equal(t, CorruptReset, cfg.Ledger.CorruptPolicy)
	require.Equal(t, 15*time.Second, cfg.ScanInterval())
	require.Equal(t, DefaultGraceCycles, cfg.Scan.GraceCycles)
	require.Equal(t, DefaultStatusCapacity, cfg.Status.Capacity)
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("PRN_TEST_TOKEN", "secret")
	cfg, err := Parse([]byte(`
backend:
  url: http://influx:8086/api/v2/write
  token: ${PRN_TEST_TOKEN}
  precision: MS
`))
	require.NoError(t, err)
	require.Equal(t, "secret", cfg.Backend.Token)
	require.Equal(t, PrecisionMilliseconds, cfg.Backend.Precision)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"precision":   "backend:\n  precision: minutes\n",
		"version":     "version: \"9\"\n",
		"interval":    "scan:\n  interval: soon\n",
		"scheme":      "backend:\n  url: ftp://x\n  token: t\n",
		"token no url": "backend:\n  token: t\n",
		"encoding":    "input:\n  encoding: klingon\n",
		"policy":      "ledger:\n  corrupt_policy: maybe\n",
		"pattern":     "input:\n  pattern: \"[\"\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestParseDropsBlankFields(t *testing.T) {
	cfg, err := Parse([]byte("fields:\n  enabled: [TempC, \"  \", Humidity]\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"TempC", "Humidity"}, cfg.Fields.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestInitRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prnpusher.yaml")
	t.Setenv("INFLUX_TOKEN", "tok")

	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "tok", cfg.Backend.Token)
	require.Equal(t, []string{"TempC"}, cfg.Fields.Enabled)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLocation(t *testing.T) {
	cfg := Default()
	require.Equal(t, time.Local, cfg.Location())
	cfg.Input.Timezone = "UTC"
	require.Equal(t, "UTC", cfg.Location().String())
}

func TestCloneIsDeep(t *testing.T) {
	cfg := Default()
	cfg.Fields.Enabled = []string{"a"}
	c := cfg.Clone()
	c.Fields.Enabled[0] = "b"
	require.Equal(t, "a", cfg.Fields.Enabled[0])
}
