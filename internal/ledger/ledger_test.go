package ledger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/prnpusher/internal/config"
	"git.home.luguber.info/inful/prnpusher/internal/foundation/errors"
)

func TestLedgerSetSemantics(t *testing.T) {
	l := New()
	require.True(t, l.Add("100", "TempC"))
	require.False(t, l.Add("100", "TempC"))
	require.True(t, l.Add("100", "Humidity"))
	require.True(t, l.Has("100", "TempC"))
	require.False(t, l.Has("200", "TempC"))
	require.Equal(t, 1, l.Len())
	require.Equal(t, 2, l.Pairs())
}

func TestCloneIsIndependent(t *testing.T) {
	l := New()
	l.Add("1", "a")
	c := l.Clone()
	c.Add("1", "b")
	c.Add("2", "a")
	require.False(t, l.Has("1", "b"))
	require.Equal(t, 1, l.Len())
	require.Equal(t, 3, c.Pairs())
}

func TestRecordsOrder(t *testing.T) {
	l := FromRecords([]Record{
		{Timestamp: "1000", FieldNames: []string{"b", "a"}},
		{Timestamp: "200", FieldNames: []string{"z"}},
		{Timestamp: "200", FieldNames: []string{"y"}},
	})
	require.Equal(t, []Record{
		{Timestamp: "200", FieldNames: []string{"y", "z"}},
		{Timestamp: "1000", FieldNames: []string{"a", "b"}},
	}, l.Records())
}

func TestSidecarPath(t *testing.T) {
	require.Equal(t, filepath.Join("data", "run1_sent.xml"), SidecarPath(filepath.Join("data", "run1.prn")))
	require.Equal(t, filepath.Join("a", "b.c_sent.xml"), SidecarPath(filepath.Join("a", "b.c.PRN")))
}

func TestDecodeLegacyDocument(t *testing.T) {
	doc := `<?xml version="1.0"?>
<ArrayOfSentRecord xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema">
  <SentRecord>
    <Timestamp>1717243200</Timestamp>
    <FieldNames>
      <string>TempC</string>
      <string>Humidity</string>
    </FieldNames>
  </SentRecord>
</ArrayOfSentRecord>`
	l, err := Decode(bytes.NewBufferString(doc))
	require.NoError(t, err)
	require.True(t, l.Has("1717243200", "TempC"))
	require.True(t, l.Has("1717243200", "Humidity"))
}

func TestPersistAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_sent.xml")
	l := New()
	l.Add("1717243200", "TempC")
	require.NoError(t, Persist(path, l))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "<ArrayOfSentRecord>")
	require.Contains(t, string(data), "<string>TempC</string>")

	back, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, l.Records(), back.Records())

	// Full overwrite, never append.
	require.NoError(t, Persist(path, New()))
	back, err = Load(path)
	require.NoError(t, err)
	require.Zero(t, back.Len())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	l, err := Load(filepath.Join(dir, "none_sent.xml"))
	require.NoError(t, err)
	require.Zero(t, l.Len())

	bad := filepath.Join(dir, "bad_sent.xml")
	require.NoError(t, os.WriteFile(bad, []byte("<nope"), 0o644))
	_, err = Load(bad)
	require.ErrorIs(t, err, ErrCorrupt)

	empty := filepath.Join(dir, "empty_sent.xml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = Load(empty)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestCachePolicies(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad_sent.xml")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o644))

	reset := NewCache(config.CorruptReset)
	l, err := reset.Get(bad)
	require.NoError(t, err)
	require.Zero(t, l.Len())

	fail := NewCache(config.CorruptFail)
	_, err = fail.Get(bad)
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryLedger))
	require.Zero(t, fail.Len())
}

func TestCacheCommit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run_sent.xml")
	c := NewCache(config.CorruptReset)

	committed, err := c.Get(path)
	require.NoError(t, err)
	again, err := c.Get(path)
	require.NoError(t, err)
	require.Same(t, committed, again)

	candidate := committed.Clone()
	candidate.Add("1", "TempC")
	require.False(t, committed.Has("1", "TempC"))

	require.NoError(t, c.Commit(path, candidate))
	got, err := c.Get(path)
	require.NoError(t, err)
	require.True(t, got.Has("1", "TempC"))

	c.Forget(path)
	reloaded, err := c.Get(path)
	require.NoError(t, err)
	require.True(t, reloaded.Has("1", "TempC"))
}
