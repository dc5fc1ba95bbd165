package ledger

import (
	"bytes"
	"encoding/xml"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/prnpusher/internal/foundation/errors"
)

// SidecarSuffix is appended to the source file's stem to name its ledger.
const SidecarSuffix = "_sent.xml"

// ErrCorrupt marks a sidecar that exists but cannot be decoded.
var ErrCorrupt = stderrors.New("ledger sidecar is corrupt")

// SidecarPath returns <dir>/<stem>_sent.xml for a source file path.
func SidecarPath(source string) string {
	dir, base := filepath.Split(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+SidecarSuffix)
}

// xmlDocument mirrors the serialized form written by earlier versions of the
// pusher so existing sidecars remain readable:
//
//	<ArrayOfSentRecord>
//	  <SentRecord><Timestamp>1717243200</Timestamp><FieldNames><string>TempC</string></FieldNames></SentRecord>
//	</ArrayOfSentRecord>
type xmlDocument struct {
	XMLName xml.Name    `xml:"ArrayOfSentRecord"`
	Records []xmlRecord `xml:"SentRecord"`
}

type xmlRecord struct {
	Timestamp  string   `xml:"Timestamp"`
	FieldNames []string `xml:"FieldNames>string"`
}

// Decode parses a sidecar document.
func Decode(r io.Reader) (*Ledger, error) {
	var doc xmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	records := make([]Record, len(doc.Records))
	for i, rec := range doc.Records {
		records[i] = Record{Timestamp: strings.TrimSpace(rec.Timestamp), FieldNames: rec.FieldNames}
	}
	return FromRecords(records), nil
}

// Encode writes the ledger's sidecar document.
func Encode(w io.Writer, l *Ledger) error {
	var doc xmlDocument
	for _, rec := range l.Records() {
		doc.Records = append(doc.Records, xmlRecord(rec))
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// Load reads a sidecar. A missing sidecar yields an empty ledger and a nil
// error; an undecodable one yields an error matching ErrCorrupt.
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "read ledger sidecar").
			WithContext("path", path).Retryable().Build()
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrCorrupt)
	}
	return Decode(bytes.NewReader(data))
}

// Persist fully rewrites the sidecar through a temporary file and an atomic rename.
func Persist(path string, l *Ledger) error {
	var buf bytes.Buffer
	if err := Encode(&buf, l); err != nil {
		return errors.WrapError(err, errors.CategoryLedger, "encode ledger").WithContext("path", path).Build()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "create temporary ledger file").
			WithContext("path", path).Retryable().Build()
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.WrapError(err, errors.CategoryFileSystem, "write temporary ledger file").
			WithContext("path", path).Retryable().Build()
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.WrapError(err, errors.CategoryFileSystem, "close temporary ledger file").
			WithContext("path", path).Retryable().Build()
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.WrapError(err, errors.CategoryFileSystem, "replace ledger sidecar").
			WithContext("path", path).Retryable().Build()
	}
	return nil
}
