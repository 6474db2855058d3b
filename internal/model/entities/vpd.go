package entities

import (
	"fmt"
	"time"
)

// EmergencyAction is what the VPD controller does when a critical threshold is crossed.
type EmergencyAction string

const (
	ActionMinFan    EmergencyAction = "min_fan"
	ActionMaxFan    EmergencyAction = "max_fan"
	ActionDisable   EmergencyAction = "disable"
	ActionAlertOnly EmergencyAction = "alert_only"
)

func (a EmergencyAction) Valid() bool {
	switch a {
	case ActionMinFan, ActionMaxFan, ActionDisable, ActionAlertOnly:
		return true
	}
	return false
}

type VPDRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r VPDRange) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

type Hysteresis struct {
	Enabled               bool    `json:"enabled"`
	Threshold             float64 `json:"threshold"`             // kPa
	MinTimeBetweenChanges int     `json:"minTimeBetweenChanges"` // seconds
}

type EmergencyThreshold struct {
	Threshold float64         `json:"threshold"`
	Action    EmergencyAction `json:"action"`
}

type Emergency struct {
	Enabled         bool               `json:"enabled"`
	CriticalLowVPD  EmergencyThreshold `json:"criticalLowVPD" gorm:"embedded;embeddedPrefix:critical_low_"`
	CriticalHighVPD EmergencyThreshold `json:"criticalHighVPD" gorm:"embedded;embeddedPrefix:critical_high_"`
}

type FanLimits struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Clamp bounds v to the limits, which are themselves bounded to 0-100.
func (l FanLimits) Clamp(v int) int {
	lo, hi := l.Min, l.Max
	if lo < 0 {
		lo = 0
	}
	if hi > 100 || hi <= 0 {
		hi = 100
	}
	if lo > hi {
		lo = hi
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type VPDStats struct {
	TotalSamples   int64      `json:"totalSamples"`
	InRangeSamples int64      `json:"inRangeSamples"`
	LastAdjustment *time.Time `json:"lastAdjustment,omitempty"`
}

// VPDLogEntry records one accepted fan adjustment.
type VPDLogEntry struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	ConfigID  uint      `json:"-" gorm:"index"`
	VPD       float64   `json:"vpd"`
	FanSpeed  int       `json:"fanSpeed"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"timestamp"`
}

// VPDConfig drives the closed-loop fan controller. It is persisted by a VPD store
// and mutated by the controller (statistics, log, emergency disable).
type VPDConfig struct {
	ID             uint     `json:"-" gorm:"primaryKey"`
	Enabled        bool     `json:"enabled"`
	TargetRange    VPDRange `json:"targetRange" gorm:"embedded;embeddedPrefix:target_"`
	UpdateInterval int      `json:"updateInterval"` // seconds

	Hysteresis Hysteresis `json:"hysteresis" gorm:"embedded;embeddedPrefix:hysteresis_"`
	Emergency  Emergency  `json:"emergency" gorm:"embedded;embeddedPrefix:emergency_"`
	FanLimits  FanLimits  `json:"fanLimits" gorm:"embedded;embeddedPrefix:fan_"`

	Aggressiveness    float64 `json:"aggressiveness"`
	LogAdjustments    bool    `json:"logAdjustments"`
	NotifyOnEmergency bool    `json:"notifyOnEmergency"`

	Stats VPDStats      `json:"statistics" gorm:"embedded;embeddedPrefix:stats_"`
	Log   []VPDLogEntry `json:"log,omitempty" gorm:"foreignKey:ConfigID"`

	UpdatedAt time.Time `json:"updatedAt"`
}

func DefaultVPDConfig() VPDConfig {
	return VPDConfig{
		Enabled:        true,
		TargetRange:    VPDRange{Min: 0.8, Max: 1.2},
		UpdateInterval: 30,
		Hysteresis: Hysteresis{
			Enabled:               true,
			Threshold:             0.05,
			MinTimeBetweenChanges: 60,
		},
		Emergency: Emergency{
			Enabled:         true,
			CriticalLowVPD:  EmergencyThreshold{Threshold: 0.4, Action: ActionMaxFan},
			CriticalHighVPD: EmergencyThreshold{Threshold: 1.8, Action: ActionMinFan},
		},
		FanLimits:         FanLimits{Min: 20, Max: 100},
		Aggressiveness:    1.0,
		LogAdjustments:    true,
		NotifyOnEmergency: true,
	}
}

// InRangeRatio is the share of accepted adjustments taken while inside the target band.
func (s VPDStats) InRangeRatio() float64 {
	if s.TotalSamples == 0 {
		return 0
	}
	return float64(s.InRangeSamples) / float64(s.TotalSamples)
}

// Validate checks the user-editable settings.
func (c VPDConfig) Validate() error {
	switch {
	case c.TargetRange.Min < 0 || c.TargetRange.Min >= c.TargetRange.Max:
		return fmt.Errorf("%w: targetRange %.2f-%.2f", ErrInvalidConfig, c.TargetRange.Min, c.TargetRange.Max)
	case c.UpdateInterval < 0:
		return fmt.Errorf("%w: updateInterval=%d", ErrInvalidConfig, c.UpdateInterval)
	case c.Hysteresis.Threshold < 0 || c.Hysteresis.MinTimeBetweenChanges < 0:
		return fmt.Errorf("%w: hysteresis", ErrInvalidConfig)
	case c.FanLimits.Min < 0 || c.FanLimits.Max > 100 || c.FanLimits.Min > c.FanLimits.Max:
		return fmt.Errorf("%w: fanLimits %d-%d", ErrInvalidConfig, c.FanLimits.Min, c.FanLimits.Max)
	case c.Aggressiveness <= 0:
		return fmt.Errorf("%w: aggressiveness=%.2f", ErrInvalidConfig, c.Aggressiveness)
	case c.Emergency.Enabled && !c.Emergency.CriticalLowVPD.Action.Valid():
		return fmt.Errorf("%w: criticalLowVPD.action=%q", ErrInvalidConfig, c.Emergency.CriticalLowVPD.Action)
	case c.Emergency.Enabled && !c.Emergency.CriticalHighVPD.Action.Valid():
		return fmt.Errorf("%w: criticalHighVPD.action=%q", ErrInvalidConfig, c.Emergency.CriticalHighVPD.Action)
	}
	return nil
}
