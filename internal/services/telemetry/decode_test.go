package telemetry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
)

var received = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func TestDecodeFirmwareEnvelope(t *testing.T) {
	frame := `{"type":"sensor_update","device":"esp32_main","data":{
		"temp":24.5,"humidity":61.2,"lux":1200,"tank":1800,"gas":350,
		"soil":[40,0,101,33.5,null,62]}}`

	r, err := Decode([]byte(frame), SourceWebSocket, received)
	require.NoError(t, err)

	assert.Equal(t, "esp32_main", r.Device)
	assert.Equal(t, SourceWebSocket, r.Source)
	assert.Equal(t, received, r.Timestamp)
	assert.Equal(t, 24.5, r.Temperature)
	assert.Equal(t, 61.2, r.Humidity)
	assert.Equal(t, 1200.0, r.Lux)
	assert.Equal(t, 350, r.GasLevel)
	assert.Equal(t, 1800, r.TankLevel)

	// Sentinels are kept; the controllers reject them via ValidSoilMoisture.
	assert.Equal(t, 40.0, r.SoilMoisture[0])
	assert.Equal(t, 0.0, r.SoilMoisture[1])
	assert.Equal(t, 101.0, r.SoilMoisture[2])
	assert.True(t, math.IsNaN(r.SoilMoisture[4]))
	assert.False(t, messages.ValidSoilMoisture(r.SoilMoisture[1]))
}

func TestDecodeFlatCanonical(t *testing.T) {
	body := `{"temperature":"23,4","humidity":"55","gasLevel":5000,"tankLevel":-3,
		"soilMoisture":[10,20,30,40,50,60],"timestamp":"2024-05-10T10:00:00Z"}`

	r, err := Decode([]byte(body), SourceMQTT, received)
	require.NoError(t, err)

	assert.InDelta(t, 23.4, r.Temperature, 1e-9)
	assert.Equal(t, 55.0, r.Humidity)
	assert.Equal(t, messages.NoReading, r.GasLevel)
	assert.Equal(t, messages.NoReading, r.TankLevel)
	assert.Equal(t, [messages.SoilProbes]float64{10, 20, 30, 40, 50, 60}, r.SoilMoisture)
	assert.Equal(t, time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC), r.Timestamp)
	assert.True(t, math.IsNaN(r.Lux))
}

func TestDecodeMissingClimate(t *testing.T) {
	r, err := Decode([]byte(`{"gas":120,"temp":"nan","hum":null}`), SourceMQTT, received)
	require.NoError(t, err)
	assert.False(t, r.HasClimate())
	assert.Equal(t, 120, r.GasLevel)
	assert.Equal(t, messages.NoReading, r.TankLevel)
}

func TestDecodeUnixMillis(t *testing.T) {
	r, err := Decode([]byte(`{"temp":20,"timestamp":1715335200000}`), SourceMQTT, received)
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1715335200000).UTC(), r.Timestamp)
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode([]byte(`{"type":"command_ack","id":3}`), SourceWebSocket, received)
	assert.ErrorIs(t, err, ErrNotTelemetry)

	_, err = Decode([]byte(`{"hello":"world"}`), SourceMQTT, received)
	assert.ErrorIs(t, err, ErrEmptyReading)

	_, err = Decode([]byte(`not json`), SourceMQTT, received)
	assert.Error(t, err)

	_, err = Decode([]byte(`{"temp":"warm"}`), SourceMQTT, received)
	assert.Error(t, err)
}
