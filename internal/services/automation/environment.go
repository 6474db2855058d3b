package automation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/entities"
	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
)

// checkEnvironment runs the VPD state machine for one tick.
func (o *Orchestrator) checkEnvironment(ctx context.Context, reading messages.SensorReading, now time.Time, rep *TickReport) {
	state := o.environment(ctx, reading, now, rep)
	rep.VPDState = state
	o.metrics.VPDState(string(state))
}

func (o *Orchestrator) environment(ctx context.Context, reading messages.SensorReading, now time.Time, rep *TickReport) VPDState {
	cfg, err := o.loadVPDConfig(ctx)
	if err != nil {
		o.log.Error("vpd config load failed", "tick", rep.ID, "err", err)
		o.metrics.StoreError("load")
		o.state.LastVPDUpdate = now
		return VPDStateStoreError
	}

	if !cfg.Enabled {
		o.legacyExhaust(ctx, reading, rep)
		return VPDStateDisabled
	}

	interval := time.Duration(cfg.UpdateInterval) * time.Second
	if !o.state.LastVPDUpdate.IsZero() && now.Sub(o.state.LastVPDUpdate) < interval {
		return VPDStateThrottled
	}

	vpd, ok := CalculateVPD(reading.Temperature, reading.Humidity)
	if !ok {
		o.log.Debug("vpd skipped: missing temperature or humidity", "tick", rep.ID)
		return VPDStateSkipped
	}
	rep.VPD = &vpd
	o.metrics.SetVPD(vpd)

	if cfg.Hysteresis.Enabled && o.state.LastVPD != nil {
		change := math.Abs(vpd - *o.state.LastVPD)
		sinceChange := now.Sub(o.state.LastFanChange)
		minGap := time.Duration(cfg.Hysteresis.MinTimeBetweenChanges) * time.Second
		if change < cfg.Hysteresis.Threshold && sinceChange < minGap {
			o.log.Debug("vpd held by hysteresis", "tick", rep.ID,
				"vpd", round2(vpd), "change", round2(change), "sinceChange", sinceChange)
			return VPDStateHeld
		}
	}

	state := VPDStateAdjust
	switch {
	case cfg.Emergency.Enabled && vpd < cfg.Emergency.CriticalLowVPD.Threshold:
		state = VPDStateEmergencyLow
		o.emergency(ctx, &cfg, cfg.Emergency.CriticalLowVPD, "critically low", vpd, now, rep)
	case cfg.Emergency.Enabled && vpd > cfg.Emergency.CriticalHighVPD.Threshold:
		state = VPDStateEmergencyHigh
		o.emergency(ctx, &cfg, cfg.Emergency.CriticalHighVPD, "critically high", vpd, now, rep)
	default:
		o.adjust(ctx, &cfg, vpd, now, rep)
	}

	o.state.LastVPDUpdate = now
	o.state.LastVPD = &vpd
	return state
}

// legacyExhaust is the on/off exhaust mode used while the VPD controller is disabled.
func (o *Orchestrator) legacyExhaust(ctx context.Context, reading messages.SensorReading, rep *TickReport) {
	vpd, ok := CalculateVPD(reading.Temperature, reading.Humidity)
	if !ok {
		return
	}
	rep.VPD = &vpd
	o.metrics.SetVPD(vpd)
	switch {
	case vpd < o.cfg.VPDMin:
		o.log.Info("legacy vpd: too humid, exhaust on", "tick", rep.ID, "vpd", round2(vpd), "min", o.cfg.VPDMin)
		o.dispatch(ctx, messages.Switch(messages.CmdFanExhaust, true), rep)
	case vpd > o.cfg.VPDMax:
		o.log.Info("legacy vpd: too dry, exhaust off", "tick", rep.ID, "vpd", round2(vpd), "max", o.cfg.VPDMax)
		o.dispatch(ctx, messages.Switch(messages.CmdFanExhaust, false), rep)
	}
}

func (o *Orchestrator) emergency(ctx context.Context, cfg *entities.VPDConfig, th entities.EmergencyThreshold, label string, vpd float64, now time.Time, rep *TickReport) {
	o.log.Warn("vpd emergency", "tick", rep.ID, "vpd", round2(vpd), "threshold", th.Threshold, "action", th.Action)

	switch th.Action {
	case entities.ActionMinFan:
		o.setFan(ctx, cfg.FanLimits.Clamp(cfg.FanLimits.Min), now, rep)
	case entities.ActionMaxFan:
		o.setFan(ctx, cfg.FanLimits.Clamp(cfg.FanLimits.Max), now, rep)
	case entities.ActionDisable:
		cfg.Enabled = false
		o.saveVPDConfig(ctx, cfg, rep)
	case entities.ActionAlertOnly:
	default:
		o.log.Warn("unknown emergency action, alerting only", "tick", rep.ID, "action", th.Action)
	}

	if cfg.NotifyOnEmergency {
		o.notify(ctx, messages.Alert{
			Title: "VPD EMERGENCY",
			Body: fmt.Sprintf("VPD %s: %.2f kPa (threshold %.2f), action %s",
				label, vpd, th.Threshold, th.Action),
			Color:     messages.ColorCritical,
			Severity:  messages.SeverityCritical,
			Timestamp: now,
		}, rep)
	}
}

func (o *Orchestrator) adjust(ctx context.Context, cfg *entities.VPDConfig, vpd float64, now time.Time, rep *TickReport) {
	analysis := AnalyzeVPD(vpd, cfg.TargetRange)
	speed := CalculateFanSpeed(vpd, cfg.TargetRange, o.state.FanSpeed, cfg.Aggressiveness, cfg.FanLimits)
	if speed == o.state.FanSpeed {
		return
	}

	msg := analysis.Message(vpd, cfg.TargetRange)
	o.log.Info("vpd fan adjustment", "tick", rep.ID, "vpd", round2(vpd), "status", analysis.Status,
		"from", o.state.FanSpeed, "to", speed)
	o.setFan(ctx, speed, now, rep)

	cfg.Stats.TotalSamples++
	if analysis.InRange {
		cfg.Stats.InRangeSamples++
	}
	at := now
	cfg.Stats.LastAdjustment = &at
	if cfg.LogAdjustments {
		cfg.Log = append(cfg.Log, entities.VPDLogEntry{
			ConfigID:  cfg.ID,
			VPD:       vpd,
			FanSpeed:  speed,
			Status:    msg,
			CreatedAt: now,
		})
	}
	o.saveVPDConfig(ctx, cfg, rep)
}

func (o *Orchestrator) setFan(ctx context.Context, speed int, now time.Time, rep *TickReport) {
	o.dispatch(ctx, messages.FanPWM(speed), rep)
	o.state.FanSpeed = speed
	o.state.LastFanChange = now
	o.metrics.SetFanSpeed(speed)
}

func (o *Orchestrator) loadVPDConfig(ctx context.Context) (entities.VPDConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, o.storeTimeout)
	defer cancel()
	cfg, err := o.store.GetOrCreate(ctx)
	if err != nil {
		return entities.VPDConfig{}, fmt.Errorf("load vpd config: %w", err)
	}
	return cfg, nil
}

func (o *Orchestrator) saveVPDConfig(ctx context.Context, cfg *entities.VPDConfig, rep *TickReport) {
	ctx, cancel := context.WithTimeout(ctx, o.storeTimeout)
	defer cancel()
	if err := o.store.Save(ctx, cfg); err != nil {
		o.log.Error("vpd config save failed", "tick", rep.ID, "err", err)
		o.metrics.StoreError("save")
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
