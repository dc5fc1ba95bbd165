// Package metrics provides observability hooks for the PRN scan and upload pipeline.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	rec := metrics.NewPrometheusRecorder(registry)
//	session := scan.NewSession(cfg, scan.WithRecorder(rec))
//
// HTTPHandler exposes the registry on the admin server's /metrics route.
package metrics
