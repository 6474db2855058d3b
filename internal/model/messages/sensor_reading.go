package messages

import (
	"math"
	"time"
)

// Raw ADC bounds for the gas and tank channels of the ESP32 (12 bit).
const (
	RawADCMin = 0
	RawADCMax = 4095

	// NoReading marks a raw channel whose value was missing or out of range.
	NoReading = -1

	// Soil probes report percent; anything <= SoilMoistureFloor is a dry/disconnected probe.
	SoilMoistureFloor = 1.0
	SoilMoistureMax   = 100.0

	SoilProbes = 6
)

// SensorReading is one normalized telemetry sample of the grow tent.
// Temperature and Humidity are NaN when the sensor did not report.
type SensorReading struct {
	Source       string              `json:"source,omitempty"`
	Device       string              `json:"device,omitempty"`
	Temperature  float64             `json:"temperature"`
	Humidity     float64             `json:"humidity"`
	Lux          float64             `json:"lux"`
	GasLevel     int                 `json:"gasLevel"`
	TankLevel    int                 `json:"tankLevel"`
	SoilMoisture [SoilProbes]float64 `json:"soilMoisture"`
	Timestamp    time.Time           `json:"timestamp"`
}

// NewSensorReading returns a reading with every channel marked as missing.
func NewSensorReading() SensorReading {
	r := SensorReading{
		Temperature: math.NaN(),
		Humidity:    math.NaN(),
		Lux:         math.NaN(),
		GasLevel:    NoReading,
		TankLevel:   NoReading,
	}
	for i := range r.SoilMoisture {
		r.SoilMoisture[i] = math.NaN()
	}
	return r
}

func (r SensorReading) HasClimate() bool {
	return isFinite(r.Temperature) && isFinite(r.Humidity)
}

// ValidSoilMoisture reports whether a probe value lies in (SoilMoistureFloor, SoilMoistureMax].
func ValidSoilMoisture(v float64) bool {
	return v > SoilMoistureFloor && v <= SoilMoistureMax
}

// ValidRaw reports whether a raw ADC value is plausible.
func ValidRaw(v int) bool { return v >= RawADCMin && v <= RawADCMax }

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
