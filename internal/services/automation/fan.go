package automation

import (
	"math"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/entities"
)

const (
	// MaxStepPerBand is the PWM step applied when VPD sits one band width outside the target
	// at aggressiveness 1.
	MaxStepPerBand = 25.0
	maxStep        = 100
	minBandWidth   = 0.1 // kPa
)

// CalculateFanSpeed moves current towards the target band:
//
//	step = ceil(aggressiveness * deviation/bandWidth * MaxStepPerBand), capped at 100
//
// High VPD raises the speed, low VPD lowers it. Inside the band the current speed is kept.
// The result is always within limits.
func CalculateFanSpeed(vpd float64, target entities.VPDRange, current int, aggressiveness float64, limits entities.FanLimits) int {
	if !finite(vpd) || target.Contains(vpd) {
		return limits.Clamp(current)
	}
	if aggressiveness <= 0 || !finite(aggressiveness) {
		aggressiveness = 1
	}
	band := math.Max(target.Max-target.Min, minBandWidth)

	var deviation float64
	direction := 1
	if vpd > target.Max {
		deviation = vpd - target.Max
	} else {
		deviation = target.Min - vpd
		direction = -1
	}

	step := int(math.Min(math.Ceil(aggressiveness*deviation/band*MaxStepPerBand), maxStep))
	return limits.Clamp(current + direction*step)
}
