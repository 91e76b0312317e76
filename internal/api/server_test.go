package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/ohmpilot-controller/internal/poller"
	"github.com/tamzrod/ohmpilot-controller/internal/status"
	"github.com/tamzrod/ohmpilot-controller/internal/telemetry"
)

type fakeCoordinator struct {
	snap     telemetry.Snapshot
	has      bool
	state    poller.ControlState
	controls poller.Controls
	cmdErr   error
}

func (f *fakeCoordinator) Current() (telemetry.Snapshot, bool) { return f.snap, f.has }
func (f *fakeCoordinator) State() poller.ControlState          { return f.state }
func (f *fakeCoordinator) Stage() poller.Stage                 { return poller.StageIdle }
func (f *fakeCoordinator) Controls() poller.Controls           { return f.controls }
func (f *fakeCoordinator) SetActive(a bool)                    { f.controls.Active = a }

func (f *fakeCoordinator) SetMaxPower(w int) error {
	if w < 0 || w > poller.MaxPowerLimitW {
		return fmt.Errorf("%w: %d W", poller.ErrMaxPowerOutOfRange, w)
	}
	f.controls.MaxPowerW = w
	return nil
}

func (f *fakeCoordinator) SetMaxTemperature(_ context.Context, t int) error {
	if t < poller.MinTargetTempC || t > poller.MaxTargetTempC {
		return fmt.Errorf("%w: %d C", poller.ErrTempOutOfRange, t)
	}
	f.controls.MaxTempC = float64(t)
	return f.cmdErr
}

type fakeHealth struct{ s status.Snapshot }

func (f fakeHealth) Snapshot() status.Snapshot { return f.s }

var at = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestServer() (*Server, *fakeCoordinator) {
	temp := 47.5
	coord := &fakeCoordinator{
		snap:     telemetry.NewSnapshot(at, telemetry.Readings{TemperatureC: &temp}, 800, 400),
		has:      true,
		controls: poller.Controls{MaxPowerW: 3700, MaxTempC: 52.5, Active: true},
	}
	h := fakeHealth{s: status.Snapshot{Health: status.HealthOK}}
	return NewServer(coord, h, zerolog.Nop()), coord
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetSnapshot(t *testing.T) {
	s, coord := newTestServer()

	rec := do(t, s, http.MethodGet, "/api/v1/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var v telemetry.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	require.NotNil(t, v.TemperatureC)
	assert.Equal(t, 47.5, *v.TemperatureC)
	assert.Nil(t, v.Status)
	assert.Equal(t, 800, v.SetpointW)

	coord.has = false
	rec = do(t, s, http.MethodGet, "/api/v1/snapshot", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetHealth(t *testing.T) {
	s, coord := newTestServer()
	coord.state.LastSyncTime = at

	rec := do(t, s, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	assert.Equal(t, "ok", doc["health"])
	assert.Equal(t, "idle", doc["stage"])
	assert.Equal(t, true, doc["has_snapshot"])
	assert.Equal(t, "2024-06-01T12:00:00Z", doc["last_clock_sync"])
}

func TestControls(t *testing.T) {
	s, coord := newTestServer()

	rec := do(t, s, http.MethodGet, "/api/v1/controls", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/v1/controls", `{"max_power_w": 2000, "max_temperature_c": 45, "active": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, poller.Controls{MaxPowerW: 2000, MaxTempC: 45, Active: false}, coord.controls)

	var got poller.Controls
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, coord.controls, got)
}

func TestControls_Errors(t *testing.T) {
	s, coord := newTestServer()

	rec := do(t, s, http.MethodPut, "/api/v1/controls", `{"max_power_w": 5000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var e ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	assert.Equal(t, http.StatusBadRequest, e.Status)

	rec = do(t, s, http.MethodPut, "/api/v1/controls", `{"max_temperature_c": 80}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/v1/controls", `{"bogus": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/v1/controls", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	coord.cmdErr = errors.New("device unreachable")
	rec = do(t, s, http.MethodPut, "/api/v1/controls", `{"max_temperature_c": 40}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/controls", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsMount(t *testing.T) {
	s, _ := newTestServer()
	rec := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	coord := &fakeCoordinator{}
	m := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	s = NewServer(coord, nil, zerolog.Nop(), WithMetrics(m))
	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWithAPIDisabled(t *testing.T) {
	m := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	s := NewServer(&fakeCoordinator{}, nil, zerolog.Nop(), WithAPI(false), WithMetrics(m))

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/snapshot", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/metrics", "").Code)
}

func TestControls_RejectedRequestChangesNothing(t *testing.T) {
	s, coord := newTestServer()
	before := coord.controls

	rec := do(t, s, http.MethodPut, "/api/v1/controls", `{"max_power_w": 2000, "max_temperature_c": 70, "active": false}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, before, coord.controls)

	rec = do(t, s, http.MethodPut, "/api/v1/controls", `{"max_power_w": 4000, "max_temperature_c": 45}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, before, coord.controls)
}
