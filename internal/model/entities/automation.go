package entities

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid automation config")

// AutomationConfig holds the runtime-tunable thresholds of the control loop.
type AutomationConfig struct {
	CooldownMinutes    int     `json:"cooldownMinutes"`    // watering pause per group
	DryThreshold       float64 `json:"dryThreshold"`       // % soil moisture that starts a pump
	ManualPauseMinutes int     `json:"manualPauseMinutes"` // automation pause after a human command

	LightStartHour int `json:"lightStartHour"` // 0-23
	LightDuration  int `json:"lightDuration"`  // 1-24 hours, may wrap past midnight

	VPDMin float64 `json:"vpdMin"` // kPa, legacy exhaust fan mode
	VPDMax float64 `json:"vpdMax"` // kPa

	MaxTempSafe float64 `json:"maxTempSafe"` // °C emergency shutdown
	MaxGasSafe  int     `json:"maxGasSafe"`  // raw ADC emergency shutdown
}

func DefaultAutomationConfig() AutomationConfig {
	return AutomationConfig{
		CooldownMinutes:    60,
		DryThreshold:       30,
		ManualPauseMinutes: 30,
		LightStartHour:     6,
		LightDuration:      18,
		VPDMin:             0.8,
		VPDMax:             1.2,
		MaxTempSafe:        40.0,
		MaxGasSafe:         3500,
	}
}

// AutomationConfigPatch is a partial update; nil fields keep their current value.
type AutomationConfigPatch struct {
	CooldownMinutes    *int     `json:"cooldownMinutes,omitempty"`
	DryThreshold       *float64 `json:"dryThreshold,omitempty"`
	ManualPauseMinutes *int     `json:"manualPauseMinutes,omitempty"`
	LightStartHour     *int     `json:"lightStartHour,omitempty"`
	LightDuration      *int     `json:"lightDuration,omitempty"`
	VPDMin             *float64 `json:"vpdMin,omitempty"`
	VPDMax             *float64 `json:"vpdMax,omitempty"`
	MaxTempSafe        *float64 `json:"maxTempSafe,omitempty"`
	MaxGasSafe         *int     `json:"maxGasSafe,omitempty"`
}

// Merge returns c with every non-nil field of p applied. The result is validated
// as a whole, so a patch may move both VPD bounds at once.
func (c AutomationConfig) Merge(p AutomationConfigPatch) (AutomationConfig, error) {
	out := c
	if p.CooldownMinutes != nil {
		out.CooldownMinutes = *p.CooldownMinutes
	}
	if p.DryThreshold != nil {
		out.DryThreshold = *p.DryThreshold
	}
	if p.ManualPauseMinutes != nil {
		out.ManualPauseMinutes = *p.ManualPauseMinutes
	}
	if p.LightStartHour != nil {
		out.LightStartHour = *p.LightStartHour
	}
	if p.LightDuration != nil {
		out.LightDuration = *p.LightDuration
	}
	if p.VPDMin != nil {
		out.VPDMin = *p.VPDMin
	}
	if p.VPDMax != nil {
		out.VPDMax = *p.VPDMax
	}
	if p.MaxTempSafe != nil {
		out.MaxTempSafe = *p.MaxTempSafe
	}
	if p.MaxGasSafe != nil {
		out.MaxGasSafe = *p.MaxGasSafe
	}
	if err := out.Validate(); err != nil {
		return c, err
	}
	return out, nil
}

func (c AutomationConfig) Validate() error {
	switch {
	case c.CooldownMinutes < 0:
		return fmt.Errorf("%w: cooldownMinutes=%d", ErrInvalidConfig, c.CooldownMinutes)
	case c.ManualPauseMinutes < 0:
		return fmt.Errorf("%w: manualPauseMinutes=%d", ErrInvalidConfig, c.ManualPauseMinutes)
	case c.DryThreshold < 0 || c.DryThreshold > 100:
		return fmt.Errorf("%w: dryThreshold=%.1f", ErrInvalidConfig, c.DryThreshold)
	case c.LightStartHour < 0 || c.LightStartHour > 23:
		return fmt.Errorf("%w: lightStartHour=%d", ErrInvalidConfig, c.LightStartHour)
	case c.LightDuration < 1 || c.LightDuration > 24:
		return fmt.Errorf("%w: lightDuration=%d", ErrInvalidConfig, c.LightDuration)
	case c.VPDMin >= c.VPDMax:
		return fmt.Errorf("%w: vpdMin=%.2f >= vpdMax=%.2f", ErrInvalidConfig, c.VPDMin, c.VPDMax)
	}
	return nil
}
