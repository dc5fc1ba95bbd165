// Package ledger records which (timestamp, field) pairs of a PRN file were
// already delivered, and stores that record as an XML sidecar next to the file.
package ledger

import (
	"sort"
	"strconv"
)

// Record is one timestamp key and the field names delivered for it.
type Record struct {
	Timestamp  string
	FieldNames []string
}

// Ledger maps a timestamp key to the set of delivered field names.
// A Ledger is not safe for concurrent use; callers serialize per file.
type Ledger struct {
	entries map[string]map[string]struct{}
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[string]map[string]struct{})}
}

// FromRecords builds a ledger, merging records that share a timestamp.
func FromRecords(records []Record) *Ledger {
	l := New()
	for _, r := range records {
		for _, f := range r.FieldNames {
			l.Add(r.Timestamp, f)
		}
	}
	return l
}

// Has reports whether field was delivered for ts.
func (l *Ledger) Has(ts, field string) bool {
	_, ok := l.entries[ts][field]
	return ok
}

// Add records field for ts and reports whether it was new.
func (l *Ledger) Add(ts, field string) bool {
	set, ok := l.entries[ts]
	if !ok {
		set = make(map[string]struct{})
		l.entries[ts] = set
	}
	if _, dup := set[field]; dup {
		return false
	}
	set[field] = struct{}{}
	return true
}

// Len returns the number of timestamp keys.
func (l *Ledger) Len() int { return len(l.entries) }

// Pairs returns the number of (timestamp, field) pairs.
func (l *Ledger) Pairs() int {
	n := 0
	for _, set := range l.entries {
		n += len(set)
	}
	return n
}

// Clone returns an independent deep copy.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{entries: make(map[string]map[string]struct{}, len(l.entries))}
	for ts, set := range l.entries {
		cp := make(map[string]struct{}, len(set))
		for f := range set {
			cp[f] = struct{}{}
		}
		out.entries[ts] = cp
	}
	return out
}

// Records returns the ledger in a stable order: timestamps ascending
// (numerically when both keys are integers) and field names sorted.
func (l *Ledger) Records() []Record {
	keys := make([]string, 0, len(l.entries))
	for ts := range l.entries {
		keys = append(keys, ts)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })

	out := make([]Record, 0, len(keys))
	for _, ts := range keys {
		set := l.entries[ts]
		if len(set) == 0 {
			continue
		}
		names := make([]string, 0, len(set))
		for f := range set {
			names = append(names, f)
		}
		sort.Strings(names)
		out = append(out, Record{Timestamp: ts, FieldNames: names})
	}
	return out
}

func lessKey(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}
