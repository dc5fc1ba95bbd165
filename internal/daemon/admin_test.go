package daemon

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/prnpusher/internal/fields"
	"git.home.luguber.info/inful/prnpusher/internal/foundation/errors"
)

func newAdmin(t *testing.T) (*Daemon, *httptest.Server) {
	t.Helper()
	d := newDaemon(t, newConfig(t, ""))
	srv := httptest.NewServer(NewAdminServer(d, "").Handler())
	t.Cleanup(srv.Close)
	return d, srv
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAdminFields(t *testing.T) {
	d, srv := newAdmin(t)

	resp := do(t, http.MethodPut, srv.URL+"/api/fields/Humidity", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var set setFieldResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&set))
	require.True(t, set.Changed)
	require.True(t, d.Session().Registry().Enabled("Humidity"))

	resp = do(t, http.MethodGet, srv.URL+"/api/fields", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []fields.Field
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Contains(t, list, fields.Field{Name: "TempC", Enabled: true})
	require.Contains(t, list, fields.Field{Name: "Humidity", Enabled: true})

	resp = do(t, http.MethodPut, srv.URL+"/api/fields/Humidity", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, d.Session().Registry().Enabled("Humidity"))
}

func TestAdminDisablingUnknownFieldIsNotFound(t *testing.T) {
	d, srv := newAdmin(t)

	resp := do(t, http.MethodPut, srv.URL+"/api/fields/Pressure", `{"enabled":false}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	data, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(data), `"code":"not_found"`)
	require.False(t, d.Session().Registry().Known("Pressure"))

	resp = do(t, http.MethodPut, srv.URL+"/api/fields/Pressure", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, "enabling ahead of discovery is allowed")
	require.True(t, d.Session().Registry().Enabled("Pressure"))
}

func TestAdminSetFieldValidation(t *testing.T) {
	_, srv := newAdmin(t)

	for name, body := range map[string]string{
		"malformed":     `{"enabled":`,
		"missing value": `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp := do(t, http.MethodPut, srv.URL+"/api/fields/TempC", body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			data, _ := io.ReadAll(resp.Body)
			require.Contains(t, string(data), `"code":"validation"`)
		})
	}
}

func TestAdminScanRequiresRunning(t *testing.T) {
	_, srv := newAdmin(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/scan", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/scan", "")
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAdminStatusAndHealth(t *testing.T) {
	_, srv := newAdmin(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	require.False(t, st.Running)
	require.Equal(t, "15s", st.Interval)
	require.Equal(t, []string{"TempC"}, st.EnabledFields)
	require.NotZero(t, st.FieldsVersion)
	require.Nil(t, st.LastScan)

	resp = do(t, http.MethodGet, srv.URL+"/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	require.Equal(t, HealthStatusUnhealthy, health.Status)
	require.Len(t, health.Checks, 4)
	require.Equal(t, "backend", health.Checks[3].Name)
	require.Equal(t, HealthStatusDegraded, health.Checks[3].Status)
	require.Contains(t, health.Checks[3].Message, "backend url is not set")
}

func TestAdminMetrics(t *testing.T) {
	d, srv := newAdmin(t)
	_, err := d.Session().RunCycle(context.Background())
	require.NoError(t, err)

	resp := do(t, http.MethodGet, srv.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(data), "prnpusher_files_scanned_total")
	require.Contains(t, string(data), "go_goroutines")
}

func TestAdminServerBindsListener(t *testing.T) {
	d := newDaemon(t, newConfig(t, ""))
	s := NewAdminServer(d, "127.0.0.1:0")
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	resp := do(t, http.MethodGet, "http://"+s.Addr()+"/api/fields", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	clash := NewAdminServer(d, s.Addr())
	require.Error(t, clash.Start())
}

func TestPanicRecovery(t *testing.T) {
	h := chain(slog.Default(), errors.NewHTTPErrorAdapter(nil))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}
