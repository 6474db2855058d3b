package automation

import (
	"fmt"
	"math"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/entities"
)

// CalculateVPD returns the vapor pressure deficit in kPa (Tetens, saturation over water).
// ok is false when either input is missing.
func CalculateVPD(tempC, relHumidity float64) (vpd float64, ok bool) {
	if !finite(tempC) || !finite(relHumidity) {
		return 0, false
	}
	rh := math.Min(math.Max(relHumidity, 0), 100)
	svp := 0.6108 * math.Exp(17.27*tempC/(tempC+237.3))
	avp := svp * rh / 100
	return svp - avp, true
}

type VPDStatus string

const (
	VPDOptimal VPDStatus = "optimal"
	VPDTooLow  VPDStatus = "too_low"
	VPDTooHigh VPDStatus = "too_high"
)

type VPDAnalysis struct {
	Status         VPDStatus `json:"status"`
	InRange        bool      `json:"inRange"`
	Deviation      float64   `json:"deviation"` // kPa outside the band, 0 when inside
	Recommendation string    `json:"recommendation"`
}

func AnalyzeVPD(vpd float64, target entities.VPDRange) VPDAnalysis {
	switch {
	case vpd < target.Min:
		return VPDAnalysis{
			Status:         VPDTooLow,
			Deviation:      target.Min - vpd,
			Recommendation: "air too humid: raise exhaust, lower humidifier",
		}
	case vpd > target.Max:
		return VPDAnalysis{
			Status:         VPDTooHigh,
			Deviation:      vpd - target.Max,
			Recommendation: "air too dry: lower exhaust, raise humidifier",
		}
	default:
		return VPDAnalysis{Status: VPDOptimal, InRange: true, Recommendation: "hold"}
	}
}

func (a VPDAnalysis) Message(vpd float64, target entities.VPDRange) string {
	return fmt.Sprintf("VPD %.2f kPa %s (target %.2f-%.2f): %s",
		vpd, a.Status, target.Min, target.Max, a.Recommendation)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
