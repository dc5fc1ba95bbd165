package prnfile

import (
	"strings"
	"time"

	"git.home.luguber.info/inful/prnpusher/internal/config"
)

// dateTimeLayouts are tried in order against "<date> <time>".
var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04",
	"1/2/2006 3:04 PM",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 3:04:05 PM",
}

// ParseTime parses the date and time columns of a row in loc.
func ParseTime(date, clock string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	s := strings.TrimSpace(strings.TrimSpace(date) + " " + strings.TrimSpace(clock))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EpochUnits converts t to an integer count of precision units since the epoch.
func EpochUnits(t time.Time, precision config.Precision) int64 {
	switch precision {
	case config.PrecisionMilliseconds:
		return t.UnixMilli()
	case config.PrecisionMicroseconds:
		return t.UnixMicro()
	case config.PrecisionNanoseconds:
		return t.UnixNano()
	default:
		return t.Unix()
	}
}
