package automation

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/entities"
	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
)

var ctx = context.Background()

type fakeSink struct {
	mu      sync.Mutex
	sent    []messages.ActuatorCommand
	down    bool
	err     error
	panicOn messages.CommandType
}

func (s *fakeSink) Send(_ context.Context, cmd messages.ActuatorCommand) error {
	if s.panicOn != "" && cmd.Command == s.panicOn {
		panic("device exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, cmd)
	return s.err
}

func (s *fakeSink) Available() bool { return !s.down }

func (s *fakeSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}

type fakeAlerts struct {
	got []messages.Alert
}

func (a *fakeAlerts) Notify(_ context.Context, al messages.Alert) { a.got = append(a.got, al) }

type fakeStore struct {
	cfg     entities.VPDConfig
	loadErr error
	saveErr error
	saves   int
}

func (s *fakeStore) GetOrCreate(context.Context) (entities.VPDConfig, error) {
	if s.loadErr != nil {
		return entities.VPDConfig{}, s.loadErr
	}
	return s.cfg, nil
}

func (s *fakeStore) Save(_ context.Context, cfg *entities.VPDConfig) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.cfg = *cfg
	return nil
}

type mockRecorder struct{ mock.Mock }

func (m *mockRecorder) RecordTick(reading messages.SensorReading, report TickReport) {
	m.Called(reading, report)
}

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func (c *testClock) Set(t time.Time) { c.t = t }

type harness struct {
	orch   *Orchestrator
	sink   *fakeSink
	alerts *fakeAlerts
	store  *fakeStore
	clock  *testClock
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func at(hour, minute int) time.Time {
	return time.Date(2024, 5, 10, hour, minute, 0, 0, time.UTC)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sink:   &fakeSink{},
		alerts: &fakeAlerts{},
		store:  &fakeStore{cfg: entities.DefaultVPDConfig()},
		clock:  &testClock{t: at(12, 0)},
	}
	o, err := New(Options{
		Config:   entities.DefaultAutomationConfig(),
		Sink:     h.sink,
		Alerts:   h.alerts,
		Store:    h.store,
		Logger:   quietLogger(),
		Clock:    h.clock.Now,
		Location: time.UTC,
	})
	require.NoError(t, err)
	h.orch = o
	return h
}

// reading builds a benign sample: no safety trip, moist soil.
func reading(tempC, rh float64) messages.SensorReading {
	r := messages.NewSensorReading()
	r.Temperature = tempC
	r.Humidity = rh
	r.GasLevel = 300
	r.TankLevel = 2000
	for i := range r.SoilMoisture {
		r.SoilMoisture[i] = 55
	}
	return r
}

func withSoil(r messages.SensorReading, soil ...float64) messages.SensorReading {
	copy(r.SoilMoisture[:], soil)
	return r
}

// Climates used across tests (VPD in kPa).
var (
	inRange     = reading(24, 65) // ~1.04
	slightlyDry = reading(25, 60) // ~1.27
	veryHumid   = reading(24, 95) // ~0.15
	veryDry     = reading(30, 30) // ~2.97
	overheated  = reading(45, 40)
)

func noClimate() messages.SensorReading {
	r := reading(0, 0)
	r.Temperature = math.NaN()
	r.Humidity = math.NaN()
	return r
}
