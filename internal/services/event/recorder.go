package event

import (
	"strconv"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
	"github.com/LeonardoBeccarini/growbox_control/internal/services/automation"
)

// Recorder turns processed ticks into Influx points.
type Recorder struct {
	w *Writer
}

func NewRecorder(w *Writer) *Recorder { return &Recorder{w: w} }

func (r *Recorder) RecordTick(reading messages.SensorReading, rep automation.TickReport) {
	points := []*write.Point{ClimatePoint(reading, rep.VPD)}
	for _, evt := range TickEvents(rep) {
		points = append(points, EventToPoint(evt))
	}
	r.w.Write(points...)
}

// TickEvents lists the system events produced by one tick.
func TickEvents(rep automation.TickReport) []CommonEvent {
	var out []CommonEvent
	base := map[string]interface{}{"tick_id": rep.ID}

	if rep.Safety != nil {
		out = append(out, CommonEvent{
			EventType: EventSafety,
			Severity:  "critical",
			Tags:      map[string]string{"trigger": string(rep.Safety.Trigger)},
			Fields:    with(base, "reason", rep.Safety.Reason),
			Timestamp: rep.At,
		})
	}
	for _, c := range rep.Commands {
		f := with(base, "command", c.String())
		if c.State != nil {
			f["state"] = *c.State
		}
		if c.Value != nil {
			f["value"] = int64(*c.Value)
		}
		tags := map[string]string{"command": string(c.Command)}
		if c.ID != nil {
			tags["group"] = strconv.Itoa(*c.ID)
		}
		out = append(out, CommonEvent{
			EventType: EventCommand,
			Severity:  "info",
			Tags:      tags,
			Fields:    f,
			Timestamp: rep.At,
		})
	}
	for _, a := range rep.Alerts {
		out = append(out, CommonEvent{
			EventType: EventAlert,
			Severity:  string(a.Severity),
			Fields:    with(base, "title", a.Title, "body", a.Body),
			Timestamp: rep.At,
		})
	}
	if rep.VPD != nil && rep.VPDState != automation.VPDStateNone {
		out = append(out, CommonEvent{
			EventType: EventVPD,
			Severity:  vpdSeverity(rep.VPDState),
			Tags:      map[string]string{"state": string(rep.VPDState)},
			Fields:    with(base, "vpd", *rep.VPD, "fan_speed", int64(rep.FanSpeed)),
			Timestamp: rep.At,
		})
	}
	return out
}

func vpdSeverity(s automation.VPDState) string {
	switch s {
	case automation.VPDStateEmergencyLow, automation.VPDStateEmergencyHigh:
		return "critical"
	}
	return "info"
}

func with(base map[string]interface{}, kv ...interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(kv)/2)
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i].(string)] = kv[i+1]
	}
	return out
}
