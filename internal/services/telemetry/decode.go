package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
)

var (
	ErrNotTelemetry = errors.New("not a telemetry message")
	ErrEmptyReading = errors.New("telemetry carries no known channel")
)

const sensorUpdate = "sensor_update"

// envelope is the frame sent by the tent firmware.
type envelope struct {
	Type   string          `json:"type"`
	Device string          `json:"device"`
	Data   json.RawMessage `json:"data"`
}

// payload accepts both the firmware field names and the canonical ones.
type payload struct {
	Temp         *number   `json:"temp"`
	Temperature  *number   `json:"temperature"`
	Hum          *number   `json:"hum"`
	Humidity     *number   `json:"humidity"`
	Lux          *number   `json:"lux"`
	Gas          *number   `json:"gas"`
	GasLevel     *number   `json:"gasLevel"`
	Tank         *number   `json:"tank"`
	TankLevel    *number   `json:"tankLevel"`
	Soil         []number  `json:"soil"`
	SoilMoisture []number  `json:"soilMoisture"`
	Device       string    `json:"device"`
	Timestamp    timestamp `json:"timestamp"`
}

// Decode turns one telemetry payload into a normalized reading. Channels that are
// missing or implausible are marked with NaN or messages.NoReading.
func Decode(data []byte, source string, now time.Time) (messages.SensorReading, error) {
	data = bytes.TrimSpace(data)
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return messages.SensorReading{}, fmt.Errorf("decode telemetry: %w", err)
	}

	device := env.Device
	body := data
	switch {
	case env.Type != "" && env.Type != sensorUpdate:
		return messages.SensorReading{}, fmt.Errorf("%w: type %q", ErrNotTelemetry, env.Type)
	case len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")):
		body = env.Data
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return messages.SensorReading{}, fmt.Errorf("decode telemetry data: %w", err)
	}

	r := messages.NewSensorReading()
	r.Source = source
	r.Device = firstNonEmpty(device, p.Device)
	r.Timestamp = now
	if !p.Timestamp.IsZero() {
		r.Timestamp = p.Timestamp.Time
	}

	seen := false
	if v, ok := pick(p.Temperature, p.Temp); ok {
		r.Temperature, seen = v, true
	}
	if v, ok := pick(p.Humidity, p.Hum); ok {
		r.Humidity, seen = v, true
	}
	if v, ok := pick(p.Lux); ok {
		r.Lux, seen = v, true
	}
	if v, ok := pick(p.GasLevel, p.Gas); ok {
		r.GasLevel, seen = raw(v), true
	}
	if v, ok := pick(p.TankLevel, p.Tank); ok {
		r.TankLevel, seen = raw(v), true
	}
	soil := p.SoilMoisture
	if len(soil) == 0 {
		soil = p.Soil
	}
	for i := 0; i < len(soil) && i < messages.SoilProbes; i++ {
		if soil[i].ok {
			r.SoilMoisture[i] = soil[i].v
			seen = true
		}
	}

	if !seen {
		return messages.SensorReading{}, ErrEmptyReading
	}
	return r, nil
}

// raw maps an ADC value to an int, or NoReading when outside the 12-bit range.
func raw(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return messages.NoReading
	}
	n := int(math.Round(v))
	if !messages.ValidRaw(n) {
		return messages.NoReading
	}
	return n
}

func pick(candidates ...*number) (float64, bool) {
	for _, c := range candidates {
		if c != nil && c.ok {
			return c.v, true
		}
	}
	return 0, false
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}

// number is a JSON value that may be a number, a numeric string (decimal comma
// allowed) or null.
type number struct {
	v  float64
	ok bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = number{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.ReplaceAll(strings.TrimSpace(str), ",", ".")
		if s == "" {
			*n = number{}
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", b)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		*n = number{}
		return nil
	}
	*n = number{v: v, ok: true}
	return nil
}

// timestamp accepts RFC 3339 strings and unix milliseconds. Anything else is ignored
// and the receive time is used instead.
type timestamp struct{ time.Time }

func (t *timestamp) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339, str); err == nil {
			t.Time = parsed
		}
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		t.Time = time.UnixMilli(ms).UTC()
	}
	return nil
}
