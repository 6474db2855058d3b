package automation

import (
	"time"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/entities"
)

// ControlState is the mutable state carried between ticks. It is owned by one
// Orchestrator and only touched under its lock.
type ControlState struct {
	Light               LightState
	FanSpeed            int
	LastVPD             *float64
	LastVPDUpdate       time.Time
	LastFanChange       time.Time
	ManualOverrideUntil time.Time
	Watering            *WateringController
}

// DefaultFanSpeed is the PWM the controller assumes before its first adjustment.
const DefaultFanSpeed = 50

func newControlState() ControlState {
	return ControlState{Light: LightUnknown, FanSpeed: DefaultFanSpeed, Watering: NewWateringController()}
}

// Snapshot is a read-only copy of the controller state for the status API.
type Snapshot struct {
	Config              entities.AutomationConfig `json:"config"`
	Light               string                    `json:"light"`
	FanSpeed            int                       `json:"fanSpeed"`
	LastVPD             *float64                  `json:"lastVPD,omitempty"`
	LastVPDUpdate       *time.Time                `json:"lastVPDUpdate,omitempty"`
	LastFanChange       *time.Time                `json:"lastFanChange,omitempty"`
	ManualOverride      bool                      `json:"manualOverride"`
	ManualOverrideUntil *time.Time                `json:"manualOverrideUntil,omitempty"`
	LastWatering        map[int]time.Time         `json:"lastWatering"`
	LastTick            *TickReport               `json:"lastTick,omitempty"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
