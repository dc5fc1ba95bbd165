package metrics

import "time"

// RejectReason enumerates why a data row produced no line.
type RejectReason string

const (
	RejectShortRow   RejectReason = "short_row"
	RejectBadTime    RejectReason = "bad_timestamp"
	RejectNoFields   RejectReason = "no_fields"
	RejectHeaderLine RejectReason = "header_row"
)

// Recorder defines observability hooks for scan cycles and uploads. All methods
// must be safe to call on the NoopRecorder.
type Recorder interface {
	IncFilesScanned()
	IncFilesSkipped()
	AddLinesUploaded(n int)
	IncUploadFailure()
	ObserveUploadDuration(d time.Duration, success bool)
	ObserveScanDuration(d time.Duration)
	IncRowsRejected(reason RejectReason)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncFilesScanned()                          {}
func (NoopRecorder) IncFilesSkipped()                          {}
func (NoopRecorder) AddLinesUploaded(int)                      {}
func (NoopRecorder) IncUploadFailure()                         {}
func (NoopRecorder) ObserveUploadDuration(time.Duration, bool) {}
func (NoopRecorder) ObserveScanDuration(time.Duration)         {}
func (NoopRecorder) IncRowsRejected(RejectReason)              {}
