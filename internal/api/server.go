// Package api serves the controller's HTTP surface: snapshot and health
// reads, the control endpoint and optionally /metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/tamzrod/ohmpilot-controller/internal/poller"
	"github.com/tamzrod/ohmpilot-controller/internal/status"
	"github.com/tamzrod/ohmpilot-controller/internal/telemetry"
)

// Coordinator is what the API reads and controls.
type Coordinator interface {
	Current() (telemetry.Snapshot, bool)
	State() poller.ControlState
	Stage() poller.Stage
	Controls() poller.Controls
	SetMaxPower(w int) error
	SetMaxTemperature(ctx context.Context, tempC int) error
	SetActive(active bool)
}

// HealthSource reports device health.
type HealthSource interface {
	Snapshot() status.Snapshot
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	status.View
	Stage        poller.Stage `json:"stage"`
	LastSync     *time.Time   `json:"last_clock_sync,omitempty"`
	HasSnapshot  bool         `json:"has_snapshot"`
	LastSnapshot *time.Time   `json:"last_snapshot,omitempty"`
}

// ControlsRequest is the body of PUT /api/v1/controls. Omitted fields are
// left unchanged.
type ControlsRequest struct {
	MaxPowerW *int  `json:"max_power_w,omitempty"`
	MaxTempC  *int  `json:"max_temperature_c,omitempty"`
	Active    *bool `json:"active,omitempty"`
}

func (r ControlsRequest) validate() error {
	if r.MaxPowerW != nil && (*r.MaxPowerW < 0 || *r.MaxPowerW > poller.MaxPowerLimitW) {
		return fmt.Errorf("%w: %d W", poller.ErrMaxPowerOutOfRange, *r.MaxPowerW)
	}
	if r.MaxTempC != nil && (*r.MaxTempC < poller.MinTargetTempC || *r.MaxTempC > poller.MaxTargetTempC) {
		return fmt.Errorf("%w: %d C", poller.ErrTempOutOfRange, *r.MaxTempC)
	}
	return nil
}

type Server struct {
	coord   Coordinator
	health  HealthSource
	metrics http.Handler
	noAPI   bool
	log     zerolog.Logger
	router  *mux.Router
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics mounts a metrics handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithAPI toggles the /api/v1 routes. They are on by default.
func WithAPI(enabled bool) Option {
	return func(s *Server) { s.noAPI = !enabled }
}

func NewServer(coord Coordinator, health HealthSource, log zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		coord:  coord,
		health: health,
		log:    log,
		router: mux.NewRouter(),
	}
	for _, o := range opts {
		o(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	if !s.noAPI {
		v1 := s.router.PathPrefix("/api/v1").Subrouter()
		v1.HandleFunc("/snapshot", s.getSnapshot).Methods(http.MethodGet)
		v1.HandleFunc("/health", s.getHealth).Methods(http.MethodGet)
		v1.HandleFunc("/controls", s.getControls).Methods(http.MethodGet)
		v1.HandleFunc("/controls", s.putControls).Methods(http.MethodPut)
	}

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ---- handlers ----

func (s *Server) getSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.coord.Current()
	if !ok {
		s.writeError(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, snap.View())
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		View:  status.Snapshot{Health: status.HealthUnknown}.View(),
		Stage: s.coord.Stage(),
	}
	if s.health != nil {
		resp.View = s.health.Snapshot().View()
	}
	if st := s.coord.State(); !st.LastSyncTime.IsZero() {
		t := st.LastSyncTime
		resp.LastSync = &t
	}
	if snap, ok := s.coord.Current(); ok {
		t := snap.At()
		resp.HasSnapshot = true
		resp.LastSnapshot = &t
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getControls(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.coord.Controls())
}

func (s *Server) putControls(w http.ResponseWriter, r *http.Request) {
	var req ControlsRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	// Nothing is applied unless every field is in range.
	if err := req.validate(); err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.MaxTempC != nil {
		if err := s.coord.SetMaxTemperature(r.Context(), *req.MaxTempC); err != nil {
			code := http.StatusBadGateway
			if errors.Is(err, poller.ErrTempOutOfRange) {
				code = http.StatusBadRequest
			}
			s.writeError(w, err.Error(), code)
			return
		}
	}

	if req.MaxPowerW != nil {
		if err := s.coord.SetMaxPower(*req.MaxPowerW); err != nil {
			s.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if req.Active != nil {
		s.coord.SetActive(*req.Active)
	}

	s.writeJSON(w, http.StatusOK, s.coord.Controls())
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, code int) {
	s.writeJSON(w, code, ErrorResponse{Message: message, Status: code})
}
