package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/prnpusher/internal/fields"
	"git.home.luguber.info/inful/prnpusher/internal/foundation/errors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("prnpusher"), kong.Vars{"version": "test"})
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)

	var out bytes.Buffer
	err = ctx.Run(&Global{Out: &out}, &cli)
	return out.String(), err
}

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	folder := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(folder, 0o755))
	prn := filepath.Join(folder, "run.prn")
	require.NoError(t, os.WriteFile(prn, []byte("ID\tDate\tTime\tTempC\tHumidity\n1\t2024-06-01\t12:00:00\t22.5\t40\n"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(prn, old, old))

	cfgPath := filepath.Join(dir, "prnpusher.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`version: "1.0"
input:
  folder: `+folder+`
  timezone: UTC
backend:
  url: http://127.0.0.1:1/api/v2/write
fields:
  enabled: [TempC]
`), 0o600))
	return cfgPath
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prnpusher.yaml")

	out, err := run(t, "--config", path, "init")
	require.NoError(t, err)
	require.Contains(t, out, "initialized successfully")
	require.FileExists(t, path)

	_, err = run(t, "--config", path, "init")
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))

	_, err = run(t, "--config", path, "init", "--force")
	require.NoError(t, err)
}

func TestFields(t *testing.T) {
	cfgPath := writeFixture(t)

	out, err := run(t, "--config", cfgPath, "fields")
	require.NoError(t, err)
	require.Contains(t, out, "FIELD")
	require.Regexp(t, `TempC\s+true`, out)
	require.Regexp(t, `Humidity\s+false`, out)

	out, err = run(t, "--config", cfgPath, "fields", "--json")
	require.NoError(t, err)
	var list []fields.Field
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Equal(t, []fields.Field{{Name: "TempC", Enabled: true}, {Name: "Humidity", Enabled: false}}, list)

	_, err = os.Stat(filepath.Join(filepath.Dir(cfgPath), "data", "run_sent.xml"))
	require.True(t, os.IsNotExist(err), "listing fields never writes a ledger")
}

func TestScanDryRun(t *testing.T) {
	cfgPath := writeFixture(t)

	out, err := run(t, "--config", cfgPath, "scan", "--field", "Humidity")
	require.NoError(t, err)
	require.Contains(t, out, "Backend token is not set. Skipping upload.")
	require.Contains(t, out, "Successfully uploaded 1 lines of data from run.prn.")
	require.Contains(t, out, "Scanned 1 files: 1 opened")
	require.FileExists(t, filepath.Join(filepath.Dir(cfgPath), "data", "run_sent.xml"))
}

func TestMissingConfig(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "scan")
	require.Error(t, err)
	require.Equal(t, 7, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestScanWithoutBackendURL(t *testing.T) {
	cfgPath := writeFixture(t)
	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	stripped := strings.Replace(string(data), "backend:\n  url: http://127.0.0.1:1/api/v2/write\n", "", 1)
	require.NotEqual(t, string(data), stripped)
	require.NoError(t, os.WriteFile(cfgPath, []byte(stripped), 0o600))

	out, err := run(t, "--config", cfgPath, "scan")
	require.NoError(t, err)
	require.Contains(t, out, "0 uploaded")
	require.Contains(t, out, "Backend URL is not set: new data in 1 files was not sent")
	require.NoFileExists(t, filepath.Join(filepath.Dir(cfgPath), "data", "run_sent.xml"))
}
