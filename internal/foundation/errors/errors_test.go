package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "prnpusher.yaml").
			Build()

		require.Equal(t, CategoryConfig, err.Category())
		require.Equal(t, SeverityFatal, err.Severity())
		require.Equal(t, "invalid configuration", err.Message())
		file, ok := err.Context().GetString("file")
		require.True(t, ok)
		require.Equal(t, "prnpusher.yaml", file)
	})

	t.Run("detection through wrapping", func(t *testing.T) {
		inner := LedgerError("sidecar corrupt").Build()
		wrapped := fmt.Errorf("load ledger: %w", inner)

		require.True(t, IsClassified(wrapped))
		require.True(t, HasCategory(wrapped, CategoryLedger))
		require.Equal(t, CategoryLedger, GetCategory(wrapped))
		require.False(t, IsRetryable(wrapped))
	})

	t.Run("unclassified defaults", func(t *testing.T) {
		err := errors.New("plain")
		require.False(t, IsClassified(err))
		require.Equal(t, CategoryInternal, GetCategory(err))
		require.False(t, IsRetryable(err))
	})
}

func TestErrorBuilder(t *testing.T) {
	original := errors.New("connection refused")
	err := WrapError(original, CategoryNetwork, "write failed").
		Warning().
		Retryable().
		WithContext("url", "http://localhost:8086").
		Build()

	require.Equal(t, SeverityWarning, err.Severity())
	require.Equal(t, RetryBackoff, err.RetryStrategy())
	require.ErrorIs(t, err, original)
	require.True(t, err.CanRetry())
	require.True(t, err.IsTransient())
	require.Contains(t, err.Error(), "connection refused")
}

func TestWithContextDoesNotMutateOriginal(t *testing.T) {
	base := FileSystemError("read failed").WithContext("file", "a.prn").Build()
	derived := base.WithContext("attempt", 2)

	_, ok := base.Context().Get("attempt")
	require.False(t, ok)
	v, ok := derived.Context().Get("attempt")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestConvenienceConstructors(t *testing.T) {
	cases := []struct {
		name      string
		err       *ClassifiedError
		category  ErrorCategory
		transient bool
	}{
		{"config", ConfigError("x").Build(), CategoryConfig, false},
		{"filesystem", FileSystemError("x").Build(), CategoryFileSystem, true},
		{"parse", ParseError("x").Build(), CategoryParse, false},
		{"ledger", LedgerError("x").Build(), CategoryLedger, false},
		{"backend", BackendError("x").Build(), CategoryBackend, false},
		{"network", NetworkError("x").Build(), CategoryNetwork, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.category, tc.err.Category())
			require.Equal(t, tc.transient, tc.err.IsTransient())
		})
	}
}

func TestCLIErrorAdapter_ExitCodes(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	require.Equal(t, 0, a.ExitCodeFor(nil))
	require.Equal(t, 1, a.ExitCodeFor(errors.New("x")))
	require.Equal(t, 7, a.ExitCodeFor(ConfigError("bad").Build()))
	require.Equal(t, 8, a.ExitCodeFor(BackendError("500").Build()))
	require.Equal(t, 11, a.ExitCodeFor(LedgerError("corrupt").Build()))
	require.Equal(t, "Error: bad", a.FormatError(ConfigError("bad").Build()))
	require.Equal(t, "Internal error occurred (use -v for details)", a.FormatError(InternalError("boom").Build()))
}

func TestHTTPErrorAdapter(t *testing.T) {
	a := NewHTTPErrorAdapter(nil)
	require.Equal(t, http.StatusNotFound, a.StatusCodeFor(NotFoundError("no such field").Build()))
	require.Equal(t, http.StatusBadRequest, a.StatusCodeFor(ValidationError("bad body").Build()))
	require.Equal(t, http.StatusInternalServerError, a.StatusCodeFor(errors.New("x")))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/fields/x", nil)
	a.WriteErrorResponse(rr, req, NotFoundError("unknown field").WithContext("field", "x").Build())

	require.Equal(t, http.StatusNotFound, rr.Code)
	var body HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "unknown field", body.Error)
	require.Equal(t, "not_found", body.Code)
	require.Equal(t, "x", body.Details["field"])
}
