package prnfile

import (
	"strings"

	"git.home.luguber.info/inful/prnpusher/internal/fields"
	"git.home.luguber.info/inful/prnpusher/internal/lineproto"
)

const (
	// FirstFieldColumn is the index of the first data column.
	FirstFieldColumn = 3
	// HeaderMarker in column 1 identifies an embedded header row.
	HeaderMarker = "Date"
)

// Header is a parsed header row: raw column names and their escaped keys.
type Header struct {
	Names []string
	Keys  []string
}

// ParseHeader splits a header row on tabs.
func ParseHeader(line string) Header {
	names := strings.Split(strings.TrimSpace(line), "\t")
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = lineproto.EscapeKey(n)
	}
	return Header{Names: names, Keys: keys}
}

// FieldNames returns the candidate field columns.
func (h Header) FieldNames() []string {
	if len(h.Names) <= FirstFieldColumn {
		return nil
	}
	return h.Names[FirstFieldColumn:]
}

// HeaderParser parses header rows and registers newly discovered field names
// as disabled.
type HeaderParser struct {
	Registry *fields.Registry
	// OnDiscover, when set, receives the names a Parse call added.
	OnDiscover func(added []string)
}

// Parse parses line and registers its unknown field names.
func (p *HeaderParser) Parse(line string) Header {
	h := ParseHeader(line)
	if p.Registry == nil {
		return h
	}
	if added := p.Registry.Discover(h.FieldNames()); len(added) > 0 && p.OnDiscover != nil {
		p.OnDiscover(added)
	}
	return h
}
