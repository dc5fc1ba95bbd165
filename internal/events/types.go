// Package events defines the scan pipeline's in-process events and the bus
// carrying them.
package events

import "time"

// Event names, as returned by EventName.
const (
	NameFieldsChanged = "fields_changed"
	NameBatchUploaded = "batch_uploaded"
	NameUploadFailed  = "upload_failed"
	NameFileSkipped   = "file_skipped"
	NameScanCompleted = "scan_completed"
)

// Event is implemented by every pipeline event.
type Event interface {
	EventName() string
}

// FieldsChanged is published when header parsing registered new field names
// or a field's enabled flag changed.
type FieldsChanged struct {
	File      string    `json:"file,omitempty"`
	Added     []string  `json:"added,omitempty"`
	Field     string    `json:"field,omitempty"`
	Enabled   bool      `json:"enabled,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// BatchUploaded is published after a batch was delivered and its ledger committed.
type BatchUploaded struct {
	ScanID     string    `json:"scan_id"`
	File       string    `json:"file"`
	Lines      int       `json:"lines"`
	Fields     int       `json:"fields"`
	DryRun     bool      `json:"dry_run"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// UploadFailed is published when a batch could not be delivered.
type UploadFailed struct {
	ScanID   string    `json:"scan_id"`
	File     string    `json:"file"`
	Lines    int       `json:"lines"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// FileSkipped is published when the completion scheduler or the in-flight
// guard kept a file closed this cycle.
type FileSkipped struct {
	ScanID string `json:"scan_id"`
	File   string `json:"file"`
	Reason string `json:"reason"` // "complete" or "in_flight"
}

// ScanCompleted is published after every dispatched file of a cycle finished.
type ScanCompleted struct {
	ScanID   string        `json:"scan_id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Files    int           `json:"files"`
	Opened   int           `json:"opened"`
	Skipped  int           `json:"skipped"`
	InFlight int           `json:"in_flight"`
	Uploaded int           `json:"uploaded"`
	Failed   int           `json:"failed"`
	Unsent   int           `json:"unsent"`
	Lines    int           `json:"lines"`
}

// Finished returns the time the cycle ended.
func (e ScanCompleted) Finished() time.Time { return e.Started.Add(e.Duration) }

func (FieldsChanged) EventName() string { return NameFieldsChanged }
func (BatchUploaded) EventName() string { return NameBatchUploaded }
func (UploadFailed) EventName() string  { return NameUploadFailed }
func (FileSkipped) EventName() string   { return NameFileSkipped }
func (ScanCompleted) EventName() string { return NameScanCompleted }
