package config

import (
	"git.home.luguber.info/inful/prnpusher/internal/foundation/normalization"
)

// Precision is the backend timestamp precision tag.
type Precision string

const (
	PrecisionSeconds      Precision = "s"
	PrecisionMilliseconds Precision = "ms"
	PrecisionMicroseconds Precision = "us"
	PrecisionNanoseconds  Precision = "ns"
)

var precisionNormalizer = normalization.NewNormalizer(map[string]Precision{
	"s":  PrecisionSeconds,
	"ms": PrecisionMilliseconds,
	"us": PrecisionMicroseconds,
	"ns": PrecisionNanoseconds,
}, PrecisionSeconds)

// DryRunLedger decides what happens to the ledger when no backend token is configured.
type DryRunLedger string

const (
	// DryRunPersist records a tokenless cycle as delivered and persists the ledger.
	DryRunPersist DryRunLedger = "persist"
	// DryRunDiscard logs the batch and leaves the ledger untouched.
	DryRunDiscard DryRunLedger = "discard"
)

var dryRunNormalizer = normalization.NewNormalizer(map[string]DryRunLedger{
	"persist": DryRunPersist,
	"discard": DryRunDiscard,
}, DryRunPersist)

// CorruptPolicy decides how an unreadable sidecar ledger is treated.
type CorruptPolicy string

const (
	// CorruptReset treats an undecodable ledger as empty.
	CorruptReset CorruptPolicy = "reset"
	// CorruptFail aborts the file's cycle until the sidecar is repaired or removed.
	CorruptFail CorruptPolicy = "fail"
)

var corruptNormalizer = normalization.NewNormalizer(map[string]CorruptPolicy{
	"reset": CorruptReset,
	"fail":  CorruptFail,
}, CorruptReset)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryNormalizer = normalization.NewNormalizer(map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, RetryBackoffLinear)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewNormalizer(map[string]LogLevel{
	"debug": LogLevelDebug,
	"info":  LogLevelInfo,
	"warn":  LogLevelWarn,
	"error": LogLevelError,
}, LogLevelInfo)

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewNormalizer(map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)
