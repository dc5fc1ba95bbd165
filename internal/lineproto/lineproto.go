// Package lineproto encodes write lines in the backend's line protocol:
//
//	measurement field1=value1,field2="text" 1717243200
//
// Only the measurement and field set are supported; tag sets are not.
package lineproto

import (
	"math"
	"strconv"
	"strings"
)

var (
	keyEscaper         = strings.NewReplacer(" ", `\ `, ",", `\,`, "=", `\=`)
	measurementEscaper = strings.NewReplacer(" ", `\ `, ",", `\,`)
	stringEscaper      = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

// Field is one field=value pair. Key must already be escaped with EscapeKey.
type Field struct {
	Key   string
	Value string
}

// EscapeKey escapes a field key (spaces, commas and equals signs).
func EscapeKey(name string) string {
	return keyEscaper.Replace(name)
}

// EscapeMeasurement escapes a measurement name (spaces and commas).
func EscapeMeasurement(name string) string {
	return measurementEscaper.Replace(name)
}

// IsNumeric reports whether raw is emitted as an unquoted float.
// Special values such as NaN, Inf and hex floats are rejected since the
// backend does not accept them as float literals.
func IsNumeric(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.', r == '-', r == '+', r == 'e', r == 'E':
		default:
			return false
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// EncodeValue renders raw as a float literal when numeric, otherwise as a
// double-quoted string literal.
func EncodeValue(raw string) string {
	if IsNumeric(raw) {
		return strings.TrimSpace(raw)
	}
	return `"` + stringEscaper.Replace(raw) + `"`
}

// NewField builds a Field from an already escaped key and a raw value.
func NewField(escapedKey, raw string) Field {
	return Field{Key: escapedKey, Value: EncodeValue(raw)}
}

// Line renders one write line. It returns "" when fields is empty, since a
// line without fields is rejected by the backend.
func Line(measurement string, fields []Field, timestamp int64) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(EscapeMeasurement(measurement))
	b.WriteByte(' ')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(timestamp, 10))
	return b.String()
}

// Join concatenates lines into a request body.
func Join(lines []string) string {
	return strings.Join(lines, "\n")
}
