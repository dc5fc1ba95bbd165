package daemon

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/prnpusher/internal/fields"
	"git.home.luguber.info/inful/prnpusher/internal/foundation/errors"
	"git.home.luguber.info/inful/prnpusher/internal/logfields"
	"git.home.luguber.info/inful/prnpusher/internal/metrics"
)

const maxBodyBytes = 1 << 16

// AdminServer serves the status, field and scan control API.
type AdminServer struct {
	daemon       *Daemon
	addr         string
	server       *http.Server
	listener     net.Listener
	errorAdapter *errors.HTTPErrorAdapter
}

// NewAdminServer creates an admin server for d listening on addr.
func NewAdminServer(d *Daemon, addr string) *AdminServer {
	return &AdminServer{
		daemon:       d,
		addr:         addr,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *AdminServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/fields", s.handleFields)
	mux.HandleFunc("PUT /api/fields/{name}", s.handleSetField)
	mux.HandleFunc("POST /api/scan", s.handleScan)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", metrics.HTTPHandler(s.daemon.Registry()))
	return chain(slog.Default(), s.errorAdapter)(mux)
}

// Start binds the listener before serving so a bad address fails fast.
func (s *AdminServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to bind admin listener").
			WithContext("addr", s.addr).
			Build()
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			slog.Error("Admin server failed", logfields.Error(err))
		}
	}()
	slog.Info("Admin server listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *AdminServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts the server down.
func (s *AdminServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *AdminServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.daemon.Status())
}

func (s *AdminServer) handleFields(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.daemon.Fields())
}

type setFieldRequest struct {
	Enabled *bool `json:"enabled"`
}

type setFieldResponse struct {
	fields.Field
	Changed bool `json:"changed"`
}

func (s *AdminServer) handleSetField(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		s.errorAdapter.WriteErrorResponse(w, r, errors.NewError(errors.CategoryValidation, "field name is required").Build())
		return
	}

	var req setFieldRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, errors.WrapError(err, errors.CategoryValidation, "invalid request body").Build())
		return
	}
	if req.Enabled == nil {
		s.errorAdapter.WriteErrorResponse(w, r, errors.NewError(errors.CategoryValidation, "enabled is required").
			WithContext("field", name).
			Build())
		return
	}

	if !*req.Enabled && !s.daemon.Session().Registry().Known(name) {
		s.errorAdapter.WriteErrorResponse(w, r, errors.NewError(errors.CategoryNotFound, "unknown field").
			WithContext("field", name).
			Build())
		return
	}

	changed := s.daemon.SetField(name, *req.Enabled)
	writeJSON(w, http.StatusOK, setFieldResponse{
		Field:   fields.Field{Name: name, Enabled: *req.Enabled},
		Changed: changed,
	})
}

func (s *AdminServer) handleScan(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.TriggerScan(); err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scan requested"})
}

func (s *AdminServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.daemon.PerformHealthChecks()
	code := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", logfields.Error(err))
	}
}
