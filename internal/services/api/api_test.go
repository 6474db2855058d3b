package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/entities"
	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
	"github.com/LeonardoBeccarini/growbox_control/internal/services/automation"
	"github.com/LeonardoBeccarini/growbox_control/internal/services/vpdstore"
)

var until = time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC)

type fakeController struct {
	cfg     entities.AutomationConfig
	sendErr error
	sent    []messages.ActuatorCommand
	manual  int
}

func (f *fakeController) Config() entities.AutomationConfig { return f.cfg }

func (f *fakeController) UpdateConfig(p entities.AutomationConfigPatch) (entities.AutomationConfig, error) {
	next, err := f.cfg.Merge(p)
	if err != nil {
		return f.cfg, err
	}
	f.cfg = next
	return next, nil
}

func (f *fakeController) NotifyManualAction() time.Time {
	f.manual++
	return until
}

func (f *fakeController) ManualCommand(_ context.Context, cmd messages.ActuatorCommand) (time.Time, error) {
	if f.sendErr != nil {
		return time.Time{}, f.sendErr
	}
	f.sent = append(f.sent, cmd)
	return until, nil
}

func (f *fakeController) Snapshot() automation.Snapshot {
	return automation.Snapshot{Config: f.cfg, Light: "on", FanSpeed: 42}
}

type failingStore struct{}

func (failingStore) GetOrCreate(context.Context) (entities.VPDConfig, error) {
	return entities.VPDConfig{}, errors.New("disk gone")
}
func (failingStore) Save(context.Context, *entities.VPDConfig) error { return errors.New("disk gone") }

func newTestRouter(ctrl Controller, store vpdstore.Store) http.Handler {
	return NewRouter(Options{
		Controller:   ctrl,
		Store:        store,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		AllowOrigins: []string{"*"},
		Metrics:      http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "metrics") }),
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAutomationConfig(t *testing.T) {
	ctrl := &fakeController{cfg: entities.DefaultAutomationConfig()}
	h := newTestRouter(ctrl, vpdstore.NewMemoryStore(0))

	w := do(t, h, http.MethodGet, "/api/automation/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got entities.AutomationConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, ctrl.cfg, got)

	w = do(t, h, http.MethodPatch, "/api/automation/config", `{"dryThreshold":35,"lightStartHour":6}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 35.0, ctrl.cfg.DryThreshold)
	assert.Equal(t, 6, ctrl.cfg.LightStartHour)

	w = do(t, h, http.MethodPatch, "/api/automation/config", `{"lightStartHour":24}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 6, ctrl.cfg.LightStartHour)

	w = do(t, h, http.MethodPatch, "/api/automation/config", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestManualOverride(t *testing.T) {
	ctrl := &fakeController{cfg: entities.DefaultAutomationConfig()}
	h := newTestRouter(ctrl, vpdstore.NewMemoryStore(0))

	w := do(t, h, http.MethodPost, "/api/automation/manual", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ctrl.manual)
	assert.JSONEq(t, `{"manualOverrideUntil":"2026-05-01T12:30:00Z"}`, w.Body.String())
}

func TestActuatorCommand(t *testing.T) {
	ctrl := &fakeController{cfg: entities.DefaultAutomationConfig()}
	h := newTestRouter(ctrl, vpdstore.NewMemoryStore(0))

	w := do(t, h, http.MethodPost, "/api/actuators", `{"command":"PUMP","id":2,"state":true}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, ctrl.sent, 1)
	assert.Equal(t, "PUMP#2=on", ctrl.sent[0].String())

	w = do(t, h, http.MethodPost, "/api/actuators", `{"command":"PUMP","id":3,"state":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, http.MethodPost, "/api/actuators", `{"command":"set_fan_pwm","value":140}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, ctrl.sent, 1)

	ctrl.sendErr = automation.ErrSinkUnavailable
	w = do(t, h, http.MethodPost, "/api/actuators", `{"command":"LIGHT","state":false}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	ctrl.sendErr = errors.New("broker said no")
	w = do(t, h, http.MethodPost, "/api/actuators", `{"command":"LIGHT","state":false}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestStatus(t *testing.T) {
	ctrl := &fakeController{cfg: entities.DefaultAutomationConfig()}
	h := newTestRouter(ctrl, vpdstore.NewMemoryStore(0))

	w := do(t, h, http.MethodGet, "/api/automation/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "on", body["light"])
	assert.EqualValues(t, 42, body["fanSpeed"])
}

func TestVPDConfigReplaceKeepsStatistics(t *testing.T) {
	store := vpdstore.NewMemoryStore(0)
	ctx := context.Background()
	cur, err := store.GetOrCreate(ctx)
	require.NoError(t, err)
	cur.Stats.TotalSamples = 10
	cur.Stats.InRangeSamples = 7
	cur.Log = append(cur.Log, entities.VPDLogEntry{VPD: 1.3, FanSpeed: 60, Status: "too dry"})
	require.NoError(t, store.Save(ctx, &cur))

	h := newTestRouter(&fakeController{}, store)

	w := do(t, h, http.MethodGet, "/api/vpd/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got entities.VPDConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, int64(10), got.Stats.TotalSamples)

	next := entities.DefaultVPDConfig()
	next.TargetRange = entities.VPDRange{Min: 1.0, Max: 1.4}
	next.Stats.TotalSamples = 999
	body, err := json.Marshal(next)
	require.NoError(t, err)

	w = do(t, h, http.MethodPut, "/api/vpd/config", string(body))
	require.Equal(t, http.StatusOK, w.Code)

	saved, err := store.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.VPDRange{Min: 1.0, Max: 1.4}, saved.TargetRange)
	assert.Equal(t, int64(10), saved.Stats.TotalSamples)
	assert.Equal(t, int64(7), saved.Stats.InRangeSamples)
	assert.Len(t, saved.Log, 1)
}

func TestVPDConfigRejectsInvalid(t *testing.T) {
	h := newTestRouter(&fakeController{}, vpdstore.NewMemoryStore(0))

	bad := entities.DefaultVPDConfig()
	bad.TargetRange = entities.VPDRange{Min: 1.5, Max: 1.0}
	body, err := json.Marshal(bad)
	require.NoError(t, err)

	w := do(t, h, http.MethodPut, "/api/vpd/config", string(body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "targetRange")
}

func TestVPDStoreFailure(t *testing.T) {
	h := newTestRouter(&fakeController{}, failingStore{})
	w := do(t, h, http.MethodGet, "/api/vpd/config", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk gone")
}

func TestMountsAndCORS(t *testing.T) {
	h := newTestRouter(&fakeController{}, vpdstore.NewMemoryStore(0))

	w := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, "metrics", w.Body.String())

	w = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := httptest.NewRequest(http.MethodOptions, "/api/automation/config", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}
