package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/growbox_control/internal/metrics"
	"github.com/LeonardoBeccarini/growbox_control/internal/model/entities"
	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
)

var ErrSinkUnavailable = errors.New("actuator sink unavailable")

// CommandSink delivers actuator commands to the device. Delivery is fire-and-forget.
type CommandSink interface {
	Send(ctx context.Context, cmd messages.ActuatorCommand) error
}

// AlertSink forwards human-facing notifications. Notify must not block.
type AlertSink interface {
	Notify(ctx context.Context, a messages.Alert)
}

// VPDStore persists the VPD controller configuration.
type VPDStore interface {
	GetOrCreate(ctx context.Context) (entities.VPDConfig, error)
	Save(ctx context.Context, cfg *entities.VPDConfig) error
}

// TickRecorder receives every processed tick, e.g. to write time-series events.
type TickRecorder interface {
	RecordTick(reading messages.SensorReading, report TickReport)
}

// availability is implemented by sinks whose transport can be down.
type availability interface {
	Available() bool
}

type Options struct {
	Config       entities.AutomationConfig
	Sink         CommandSink
	Alerts       AlertSink
	Store        VPDStore
	Recorder     TickRecorder
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	Clock        func() time.Time
	Location     *time.Location
	StoreTimeout time.Duration
}

// Orchestrator runs the control loop for one grow tent.
type Orchestrator struct {
	mu       sync.Mutex
	cfg      entities.AutomationConfig
	state    ControlState
	lastTick *TickReport

	sink         CommandSink
	alerts       AlertSink
	store        VPDStore
	recorder     TickRecorder
	metrics      *metrics.Metrics
	log          *slog.Logger
	now          func() time.Time
	loc          *time.Location
	storeTimeout time.Duration
}

func New(opts Options) (*Orchestrator, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Store == nil {
		return nil, errors.New("automation: VPD store is required")
	}
	o := &Orchestrator{
		cfg:          opts.Config,
		state:        newControlState(),
		sink:         opts.Sink,
		alerts:       opts.Alerts,
		store:        opts.Store,
		recorder:     opts.Recorder,
		metrics:      opts.Metrics,
		log:          opts.Logger,
		now:          opts.Clock,
		loc:          opts.Location,
		storeTimeout: opts.StoreTimeout,
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.loc == nil {
		o.loc = time.Local
	}
	if o.storeTimeout <= 0 {
		o.storeTimeout = 2 * time.Second
	}
	return o, nil
}

// Process runs one control tick for reading.
func (o *Orchestrator) Process(ctx context.Context, reading messages.SensorReading) (rep TickReport) {
	start := time.Now()

	o.mu.Lock()
	now := o.now()
	rep = TickReport{ID: uuid.NewString(), At: now}
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("tick panicked", "tick", rep.ID, "panic", r, "stack", string(debug.Stack()))
			rep.Outcome = OutcomePanic
		}
		rep.FanSpeed = o.state.FanSpeed
		last := rep
		o.lastTick = &last
		o.mu.Unlock()

		o.metrics.Tick(string(rep.Outcome), time.Since(start).Seconds())
		if o.recorder != nil {
			o.recorder.RecordTick(reading, rep)
		}
	}()

	o.tick(ctx, reading, now, &rep)
	return rep
}

func (o *Orchestrator) tick(ctx context.Context, reading messages.SensorReading, now time.Time, rep *TickReport) {
	if !o.sinkReady() {
		o.log.Warn("tick skipped: no actuator sink available", "tick", rep.ID)
		rep.Outcome = OutcomeNoSink
		return
	}

	if trip, ok := CheckSafety(reading, o.cfg); ok {
		o.shutdown(ctx, trip, now, rep)
		return
	}

	if now.Before(o.state.ManualOverrideUntil) {
		o.log.Debug("automation paused by manual override",
			"tick", rep.ID, "until", o.state.ManualOverrideUntil)
		rep.Outcome = OutcomeManualOverride
		return
	}

	o.checkLight(ctx, now, rep)
	o.checkEnvironment(ctx, reading, now, rep)
	o.checkWatering(ctx, reading, now, rep)
	rep.Outcome = OutcomeCompleted
}

func (o *Orchestrator) shutdown(ctx context.Context, trip SafetyTrip, now time.Time, rep *TickReport) {
	o.log.Error("SAFETY SHUTDOWN", "tick", rep.ID, "reason", trip.Reason, "trigger", trip.Trigger)
	rep.Outcome = OutcomeSafety
	rep.Safety = &trip
	o.metrics.SafetyTrip(string(trip.Trigger))

	for _, cmd := range ShutdownCommands() {
		o.dispatch(ctx, cmd, rep)
	}
	o.state.Light = LightOff

	o.notify(ctx, messages.Alert{
		Title:     "EMERGENCY SHUTDOWN",
		Body:      trip.Reason,
		Color:     messages.ColorCritical,
		Severity:  messages.SeverityCritical,
		Timestamp: now,
	}, rep)
}

func (o *Orchestrator) checkLight(ctx context.Context, now time.Time, rep *TickReport) {
	hour := now.In(o.loc).Hour()
	want := lightStateOf(DesiredLightState(hour, o.cfg))
	if want == o.state.Light {
		return
	}
	o.log.Info("light schedule transition", "tick", rep.ID, "hour", hour, "from", o.state.Light, "to", want)
	o.dispatch(ctx, messages.Switch(messages.CmdLight, want == LightOn), rep)
	o.state.Light = want
}

func (o *Orchestrator) checkWatering(ctx context.Context, reading messages.SensorReading, now time.Time, rep *TickReport) {
	for _, g := range DefaultGroups {
		d := o.state.Watering.CheckGroup(now, g.ID, g.Readings(reading), o.cfg)
		rep.Watering = append(rep.Watering, d)
		if d.Valid == 0 {
			o.log.Debug("watering skipped: no valid soil readings", "tick", rep.ID, "group", g.ID)
			continue
		}
		if !d.Fire {
			continue
		}
		o.log.Info("watering group", "tick", rep.ID, "group", g.ID,
			"moisture", fmt.Sprintf("%.1f", d.Mean), "threshold", o.cfg.DryThreshold)
		o.dispatch(ctx, messages.Pump(g.ID, true), rep)
		o.notify(ctx, messages.Alert{
			Title:     fmt.Sprintf("Watering group %d", g.ID),
			Body:      fmt.Sprintf("Soil moisture %.1f%% below %.1f%%, pump %d on", d.Mean, o.cfg.DryThreshold, g.ID),
			Color:     messages.ColorWatering,
			Severity:  messages.SeverityMedium,
			Timestamp: now,
		}, rep)
	}
}

// dispatch sends cmd without waiting on the outcome beyond logging it.
func (o *Orchestrator) dispatch(ctx context.Context, cmd messages.ActuatorCommand, rep *TickReport) {
	rep.Commands = append(rep.Commands, cmd)
	o.metrics.Command(string(cmd.Command), "automation")
	if err := o.sink.Send(ctx, cmd); err != nil {
		o.log.Warn("actuator command not delivered", "tick", rep.ID, "command", cmd.String(), "err", err)
	}
}

func (o *Orchestrator) notify(ctx context.Context, a messages.Alert, rep *TickReport) {
	rep.Alerts = append(rep.Alerts, a)
	o.metrics.Alert(string(a.Severity))
	if o.alerts != nil {
		o.alerts.Notify(ctx, a)
	}
}

func (o *Orchestrator) sinkReady() bool {
	if o.sink == nil {
		return false
	}
	if a, ok := o.sink.(availability); ok {
		return a.Available()
	}
	return true
}

// NotifyManualAction opens the manual override window and returns its end.
func (o *Orchestrator) NotifyManualAction() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.openOverride()
}

func (o *Orchestrator) openOverride() time.Time {
	until := o.now().Add(time.Duration(o.cfg.ManualPauseMinutes) * time.Minute)
	o.state.ManualOverrideUntil = until
	o.log.Info("manual override", "until", until)
	return until
}

// ManualCommand forwards a human command to the device and pauses automation.
func (o *Orchestrator) ManualCommand(ctx context.Context, cmd messages.ActuatorCommand) (time.Time, error) {
	if err := cmd.Validate(); err != nil {
		return time.Time{}, fmt.Errorf("manual command: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// A human acted even if delivery fails, so automation pauses either way.
	until := o.openOverride()
	if !o.sinkReady() {
		return until, ErrSinkUnavailable
	}
	if err := o.sink.Send(ctx, cmd); err != nil {
		return until, fmt.Errorf("manual command %s: %w", cmd, err)
	}
	o.metrics.Command(string(cmd.Command), "manual")

	switch {
	case cmd.Command == messages.CmdLight && cmd.State != nil:
		o.state.Light = lightStateOf(*cmd.State)
	case cmd.Command == messages.CmdSetFanPWM && cmd.Value != nil:
		o.state.FanSpeed = *cmd.Value
		o.state.LastFanChange = o.now()
		o.metrics.SetFanSpeed(o.state.FanSpeed)
	}
	return until, nil
}

// UpdateConfig shallow-merges patch into the automation config.
func (o *Orchestrator) UpdateConfig(patch entities.AutomationConfigPatch) (entities.AutomationConfig, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	next, err := o.cfg.Merge(patch)
	if err != nil {
		return o.cfg, err
	}
	o.cfg = next
	o.log.Info("automation config updated", "config", fmt.Sprintf("%+v", next))
	return next, nil
}

func (o *Orchestrator) Config() entities.AutomationConfig {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Snapshot{
		Config:              o.cfg,
		Light:               o.state.Light.String(),
		FanSpeed:            o.state.FanSpeed,
		LastVPDUpdate:       timePtr(o.state.LastVPDUpdate),
		LastFanChange:       timePtr(o.state.LastFanChange),
		ManualOverride:      o.now().Before(o.state.ManualOverrideUntil),
		ManualOverrideUntil: timePtr(o.state.ManualOverrideUntil),
		LastWatering:        o.state.Watering.LastWatering(),
	}
	if o.state.LastVPD != nil {
		v := *o.state.LastVPD
		s.LastVPD = &v
	}
	if o.lastTick != nil {
		t := *o.lastTick
		s.LastTick = &t
	}
	return s
}
