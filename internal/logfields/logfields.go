package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyFile       = "file"
	KeyField      = "field"
	KeyTimestamp  = "timestamp"
	KeyLine       = "line"
	KeyLines      = "lines"
	KeyScanID     = "scan_id"
	KeyFolder     = "folder"
	KeyURL        = "url"
	KeyStatusCode = "status_code"
	KeyAttempt    = "attempt"
	KeyState      = "completion_state"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
	KeyMethod     = "method"
	KeyPath       = "path"
	KeyRemoteAddr = "remote_addr"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func File(path string) slog.Attr      { return slog.String(KeyFile, path) }
func Field(name string) slog.Attr     { return slog.String(KeyField, name) }
func Timestamp(ts string) slog.Attr   { return slog.String(KeyTimestamp, ts) }
func Line(n int) slog.Attr            { return slog.Int(KeyLine, n) }
func Lines(n int) slog.Attr           { return slog.Int(KeyLines, n) }
func ScanID(id string) slog.Attr      { return slog.String(KeyScanID, id) }
func Folder(path string) slog.Attr    { return slog.String(KeyFolder, path) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func StatusCode(code int) slog.Attr   { return slog.Int(KeyStatusCode, code) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func CompletionState(s int) slog.Attr { return slog.Int(KeyState, s) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func RemoteAddr(a string) slog.Attr   { return slog.String(KeyRemoteAddr, a) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
