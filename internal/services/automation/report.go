package automation

import (
	"time"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
)

type TickOutcome string

const (
	OutcomeNoSink         TickOutcome = "no_sink"
	OutcomeSafety         TickOutcome = "safety_shutdown"
	OutcomeManualOverride TickOutcome = "manual_override"
	OutcomeCompleted      TickOutcome = "completed"
	OutcomePanic          TickOutcome = "panic"
)

// VPDState is where the environmental controller ended for a tick.
type VPDState string

const (
	VPDStateNone          VPDState = ""
	VPDStateDisabled      VPDState = "DISABLED"
	VPDStateThrottled     VPDState = "THROTTLED"
	VPDStateHeld          VPDState = "HYSTERESIS_HELD"
	VPDStateEmergencyLow  VPDState = "EMERGENCY_LOW"
	VPDStateEmergencyHigh VPDState = "EMERGENCY_HIGH"
	VPDStateAdjust        VPDState = "NORMAL_ADJUST"
	VPDStateSkipped       VPDState = "SKIPPED"
	VPDStateStoreError    VPDState = "STORE_ERROR"
)

// TickReport describes what one Process call decided and dispatched.
type TickReport struct {
	ID       string                     `json:"id"`
	At       time.Time                  `json:"at"`
	Outcome  TickOutcome                `json:"outcome"`
	Safety   *SafetyTrip                `json:"safety,omitempty"`
	VPD      *float64                   `json:"vpd,omitempty"`
	VPDState VPDState                   `json:"vpdState,omitempty"`
	FanSpeed int                        `json:"fanSpeed"`
	Watering []WateringDecision         `json:"watering,omitempty"`
	Commands []messages.ActuatorCommand `json:"commands,omitempty"`
	Alerts   []messages.Alert           `json:"alerts,omitempty"`
}

// CommandsOf returns the dispatched commands of the given type.
func (r TickReport) CommandsOf(t messages.CommandType) []messages.ActuatorCommand {
	var out []messages.ActuatorCommand
	for _, c := range r.Commands {
		if c.Command == t {
			out = append(out, c)
		}
	}
	return out
}
