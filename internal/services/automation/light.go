package automation

import "github.com/LeonardoBeccarini/growbox_control/internal/model/entities"

// LightState is the last light state sent to the device.
type LightState int

const (
	LightUnknown LightState = iota
	LightOff
	LightOn
)

func (s LightState) String() string {
	switch s {
	case LightOn:
		return "on"
	case LightOff:
		return "off"
	}
	return "unknown"
}

func lightStateOf(on bool) LightState {
	if on {
		return LightOn
	}
	return LightOff
}

// DesiredLightState reports whether the light should be on at the given clock hour.
// The window starts at LightStartHour and lasts LightDuration hours, wrapping midnight.
func DesiredLightState(hour int, cfg entities.AutomationConfig) bool {
	start := cfg.LightStartHour
	end := (start + cfg.LightDuration) % 24
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
