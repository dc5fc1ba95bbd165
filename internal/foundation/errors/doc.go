// Package errors provides the classified error primitives used across prnpusher.
//
// Every failure in the scan pipeline degrades to "retry later", so the useful
// question for a caller is rarely "what went wrong" and mostly "what now":
// skip the row, skip the file for this cycle, or retry the upload. The
// category and retry strategy on a ClassifiedError answer that.
//
// Example usage:
//
//	err := errors.BackendError("write rejected").
//		WithContext("status_code", resp.StatusCode).
//		WithCause(originalErr).
//		Build()
package errors
