package automation

import (
	"time"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/entities"
	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
)

// WateringGroup maps a pump to the soil probes it serves.
type WateringGroup struct {
	ID     int
	Probes [3]int
}

var DefaultGroups = []WateringGroup{
	{ID: 1, Probes: [3]int{0, 1, 2}},
	{ID: 2, Probes: [3]int{3, 4, 5}},
}

func (g WateringGroup) Readings(r messages.SensorReading) []float64 {
	out := make([]float64, 0, len(g.Probes))
	for _, idx := range g.Probes {
		out = append(out, r.SoilMoisture[idx])
	}
	return out
}

type WateringDecision struct {
	Group int     `json:"group"`
	Mean  float64 `json:"mean"`
	Valid int     `json:"valid"`
	Fire  bool    `json:"fire"`
}

// WateringController tracks the last pump start per group.
type WateringController struct {
	last map[int]time.Time
}

func NewWateringController() *WateringController {
	return &WateringController{last: make(map[int]time.Time)}
}

// MeanMoisture averages the plausible probe values; n is how many were used.
func MeanMoisture(readings []float64) (mean float64, n int) {
	var sum float64
	for _, v := range readings {
		if !messages.ValidSoilMoisture(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

// CheckGroup decides whether group must be watered now and, if so, records the start.
func (w *WateringController) CheckGroup(now time.Time, group int, readings []float64, cfg entities.AutomationConfig) WateringDecision {
	mean, n := MeanMoisture(readings)
	d := WateringDecision{Group: group, Mean: mean, Valid: n}
	if n == 0 || mean >= cfg.DryThreshold {
		return d
	}
	cooldown := time.Duration(cfg.CooldownMinutes) * time.Minute
	if last, ok := w.last[group]; ok && now.Sub(last) <= cooldown {
		return d
	}
	w.last[group] = now
	d.Fire = true
	return d
}

// LastWatering returns a copy of the per-group start times.
func (w *WateringController) LastWatering() map[int]time.Time {
	out := make(map[int]time.Time, len(w.last))
	for k, v := range w.last {
		out[k] = v
	}
	return out
}
