package automation

import (
	"fmt"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/entities"
	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
)

type SafetyTrigger string

const (
	TriggerTemperature SafetyTrigger = "temperature"
	TriggerGas         SafetyTrigger = "gas"
)

const (
	ReasonCriticalHeat = "CRITICAL HEAT"
	ReasonGasAlarm     = "GAS/SMOKE ALARM"
)

type SafetyTrip struct {
	Trigger SafetyTrigger `json:"triggeredBy"`
	Reason  string        `json:"reason"`
}

// CheckSafety evaluates the hard limits in fixed order; temperature wins over gas.
func CheckSafety(r messages.SensorReading, cfg entities.AutomationConfig) (SafetyTrip, bool) {
	if finite(r.Temperature) && r.Temperature > cfg.MaxTempSafe {
		return SafetyTrip{
			Trigger: TriggerTemperature,
			Reason:  fmt.Sprintf("%s: %.1f°C", ReasonCriticalHeat, r.Temperature),
		}, true
	}
	if r.GasLevel != messages.NoReading && r.GasLevel > cfg.MaxGasSafe {
		return SafetyTrip{
			Trigger: TriggerGas,
			Reason:  fmt.Sprintf("%s: level %d", ReasonGasAlarm, r.GasLevel),
		}, true
	}
	return SafetyTrip{}, false
}

// ShutdownCommands is the all-off set sent on a safety trip.
func ShutdownCommands() []messages.ActuatorCommand {
	return []messages.ActuatorCommand{
		messages.Switch(messages.CmdLight, false),
		messages.Pump(1, false),
		messages.Pump(2, false),
		messages.Switch(messages.CmdFanIntake, false),
		messages.Switch(messages.CmdFanExhaust, false),
		messages.Switch(messages.CmdHumidifier, false),
	}
}
