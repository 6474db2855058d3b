package event

import (
	"fmt"
	"math"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
)

const (
	MeasurementClimate = "climate"
	MeasurementEvent   = "system_event"

	EventCommand = "automation.command"
	EventAlert   = "automation.alert"
	EventVPD     = "automation.vpd"
	EventSafety  = "automation.safety"

	sourceService = "automation"
)

// CommonEvent is one row of the system_event measurement.
type CommonEvent struct {
	EventType string
	Severity  string // info|warning|critical
	Tags      map[string]string
	Fields    map[string]interface{}
	Timestamp time.Time
}

// EventToPoint maps a CommonEvent onto the system_event measurement.
func EventToPoint(evt CommonEvent) *write.Point {
	tags := map[string]string{
		"event_type":     evt.EventType,
		"source_service": sourceService,
		"severity":       evt.Severity,
	}
	for k, v := range evt.Tags {
		if v != "" {
			tags[k] = v
		}
	}
	fields := map[string]interface{}{}
	for k, v := range evt.Fields {
		fields[k] = v
	}
	if _, ok := fields["count"]; !ok {
		fields["count"] = int64(1)
	}
	return influxdb2.NewPoint(MeasurementEvent, tags, fields, evt.Timestamp)
}

// ClimatePoint records one reading. Missing channels are left out.
func ClimatePoint(r messages.SensorReading, vpd *float64) *write.Point {
	tags := map[string]string{}
	if r.Device != "" {
		tags["device"] = r.Device
	}
	if r.Source != "" {
		tags["source"] = r.Source
	}

	fields := map[string]interface{}{}
	putFloat(fields, "temperature", r.Temperature)
	putFloat(fields, "humidity", r.Humidity)
	putFloat(fields, "lux", r.Lux)
	if vpd != nil {
		putFloat(fields, "vpd", *vpd)
	}
	if r.GasLevel != messages.NoReading {
		fields["gas"] = int64(r.GasLevel)
	}
	if r.TankLevel != messages.NoReading {
		fields["tank"] = int64(r.TankLevel)
	}
	for i, v := range r.SoilMoisture {
		if messages.ValidSoilMoisture(v) {
			fields[fmt.Sprintf("soil_%d", i)] = v
		}
	}

	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2.NewPoint(MeasurementClimate, tags, fields, ts)
}

func putFloat(fields map[string]interface{}, key string, v float64) {
	if !math.IsNaN(v) && !math.IsInf(v, 0) {
		fields[key] = v
	}
}
