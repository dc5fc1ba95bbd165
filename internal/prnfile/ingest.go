package prnfile

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/prnpusher/internal/config"
	"git.home.luguber.info/inful/prnpusher/internal/fields"
	"git.home.luguber.info/inful/prnpusher/internal/foundation/errors"
	"git.home.luguber.info/inful/prnpusher/internal/ledger"
	"git.home.luguber.info/inful/prnpusher/internal/lineproto"
	"git.home.luguber.info/inful/prnpusher/internal/logfields"
	"git.home.luguber.info/inful/prnpusher/internal/metrics"
)

const maxLineBytes = 4 << 20

// OpenFunc opens a PRN file for reading.
type OpenFunc func(path string) (io.ReadCloser, error)

// Options are the per-cycle encoding parameters.
type Options struct {
	Measurement string
	Precision   config.Precision
	Location    *time.Location
	Encoding    string
}

// OptionsFromConfig derives ingest options from a configuration snapshot.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Measurement: cfg.Backend.Measurement,
		Precision:   cfg.Backend.Precision,
		Location:    cfg.Location(),
		Encoding:    cfg.Input.Encoding,
	}
}

// Batch is the result of ingesting one file.
type Batch struct {
	File  string
	Lines []string
	// Ledger is the committed ledger plus every pair emitted into Lines. It
	// is a private copy and must only be committed after a successful upload.
	Ledger *ledger.Ledger
	// Fields counts the emitted (timestamp, field) pairs.
	Fields int
}

// Empty reports whether the batch has nothing to upload.
func (b *Batch) Empty() bool { return b == nil || len(b.Lines) == 0 }

// Body returns the newline-joined request body.
func (b *Batch) Body() string { return lineproto.Join(b.Lines) }

// Ingestor turns a PRN file into a Batch of unsent write lines.
type Ingestor struct {
	registry   *fields.Registry
	open       OpenFunc
	recorder   metrics.Recorder
	onDiscover func(path string, added []string)
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithOpenFunc replaces os.Open, e.g. to count file opens in tests.
func WithOpenFunc(open OpenFunc) Option {
	return func(in *Ingestor) { in.open = open }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(in *Ingestor) {
		if r != nil {
			in.recorder = r
		}
	}
}

// WithDiscoverHook receives field names registered while parsing path.
func WithDiscoverHook(fn func(path string, added []string)) Option {
	return func(in *Ingestor) { in.onDiscover = fn }
}

// NewIngestor returns an Ingestor consulting registry for enabled fields.
func NewIngestor(registry *fields.Registry, opts ...Option) *Ingestor {
	in := &Ingestor{
		registry: registry,
		open:     func(p string) (io.ReadCloser, error) { return os.Open(p) },
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Ingest reads path and emits one line per data row that has at least one
// enabled, non-blank field not yet recorded in committed. committed is never
// modified.
//
// Malformed rows are skipped. Read failures abort the file and return a
// filesystem error.
func (in *Ingestor) Ingest(ctx context.Context, path string, opts Options, committed *ledger.Ledger) (*Batch, error) {
	if committed == nil {
		committed = ledger.New()
	}
	batch := &Batch{File: path, Ledger: committed.Clone()}

	lines, err := in.readLines(path, opts.Encoding)
	if err != nil {
		return nil, err
	}
	if len(lines) < 2 {
		return batch, nil
	}

	parser := &HeaderParser{Registry: in.registry}
	if in.onDiscover != nil {
		parser.OnDiscover = func(added []string) { in.onDiscover(path, added) }
	}
	header := parser.Parse(lines[0])

	for i := 1; i < len(lines); i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		values := strings.Split(lines[i], "\t")
		if len(values) < FirstFieldColumn+1 {
			in.recorder.IncRowsRejected(metrics.RejectShortRow)
			continue
		}
		if values[1] == HeaderMarker {
			header = parser.Parse(lines[i])
			in.recorder.IncRowsRejected(metrics.RejectHeaderLine)
			continue
		}
		t, ok := ParseTime(values[1], values[2], opts.Location)
		if !ok {
			slog.Debug("Skipping row with unparsable date/time",
				logfields.File(path), logfields.Line(i+1))
			in.recorder.IncRowsRejected(metrics.RejectBadTime)
			continue
		}
		ts := EpochUnits(t, opts.Precision)
		key := strconv.FormatInt(ts, 10)

		var row []lineproto.Field
		for j := FirstFieldColumn; j < len(header.Names) && j < len(values); j++ {
			name := header.Names[j]
			if !in.registry.Enabled(name) {
				continue
			}
			if strings.TrimSpace(values[j]) == "" || batch.Ledger.Has(key, name) {
				continue
			}
			row = append(row, lineproto.NewField(header.Keys[j], values[j]))
			batch.Ledger.Add(key, name)
		}
		if len(row) == 0 {
			in.recorder.IncRowsRejected(metrics.RejectNoFields)
			continue
		}
		batch.Lines = append(batch.Lines, lineproto.Line(opts.Measurement, row, ts))
		batch.Fields += len(row)
	}
	return batch, nil
}

// Header reads only the header row of path and registers its fields.
func (in *Ingestor) Header(path, encoding string) (Header, error) {
	lines, err := in.readLines(path, encoding)
	if err != nil {
		return Header{}, err
	}
	if len(lines) == 0 {
		return Header{}, nil
	}
	parser := &HeaderParser{Registry: in.registry}
	return parser.Parse(lines[0]), nil
}

func (in *Ingestor) readLines(path, encoding string) ([]string, error) {
	f, err := in.open(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "open PRN file").
			WithContext("path", path).Retryable().Build()
	}
	defer func() { _ = f.Close() }()

	r, err := NewDecodingReader(f, encoding)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "select input decoder").Build()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimSuffix(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "read PRN file").
			WithContext("path", path).Retryable().Build()
	}
	return lines, nil
}
