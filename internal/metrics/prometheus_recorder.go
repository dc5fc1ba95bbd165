package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "prnpusher"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	filesScanned   prom.Counter
	filesSkipped   prom.Counter
	linesUploaded  prom.Counter
	uploadFailures prom.Counter
	uploadDuration *prom.HistogramVec
	scanDuration   prom.Histogram
	rowsRejected   *prom.CounterVec
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil reg gets a private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		filesScanned: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "files_scanned_total",
			Help:      "PRN files opened and ingested",
		}),
		filesSkipped: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "files_skipped_total",
			Help:      "PRN files skipped by the completion scheduler",
		}),
		linesUploaded: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "lines_uploaded_total",
			Help:      "Line protocol records accepted by the backend",
		}),
		uploadFailures: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "upload_failures_total",
			Help:      "Batch uploads rejected by the backend or lost in transit",
		}),
		uploadDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Duration of batch uploads",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
		scanDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of complete scan cycles",
			Buckets:   prom.DefBuckets,
		}),
		rowsRejected: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "rows_rejected_total",
			Help:      "Data rows that produced no line, by reason",
		}, []string{"reason"}),
	}
	reg.MustRegister(pr.filesScanned, pr.filesSkipped, pr.linesUploaded, pr.uploadFailures,
		pr.uploadDuration, pr.scanDuration, pr.rowsRejected)
	return pr
}

func (p *PrometheusRecorder) IncFilesScanned() {
	if p == nil {
		return
	}
	p.filesScanned.Inc()
}

func (p *PrometheusRecorder) IncFilesSkipped() {
	if p == nil {
		return
	}
	p.filesSkipped.Inc()
}

func (p *PrometheusRecorder) AddLinesUploaded(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.linesUploaded.Add(float64(n))
}

func (p *PrometheusRecorder) IncUploadFailure() {
	if p == nil {
		return
	}
	p.uploadFailures.Inc()
}

func (p *PrometheusRecorder) ObserveUploadDuration(d time.Duration, success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.uploadDuration.WithLabelValues(res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveScanDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.scanDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRowsRejected(reason RejectReason) {
	if p == nil {
		return
	}
	p.rowsRejected.WithLabelValues(string(reason)).Inc()
}
