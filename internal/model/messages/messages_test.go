package messages

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActuatorCommandValidate(t *testing.T) {
	three := 3
	tests := []struct {
		name string
		cmd  ActuatorCommand
		ok   bool
	}{
		{"light", Switch(CmdLight, true), true},
		{"humidifier", Switch(CmdHumidifier, false), true},
		{"pump 2", Pump(2, true), true},
		{"fan pwm", FanPWM(100), true},
		{"switch without state", ActuatorCommand{Command: CmdFanExhaust}, false},
		{"pump without id", ActuatorCommand{Command: CmdPump, State: Switch(CmdPump, true).State}, false},
		{"pump 3", ActuatorCommand{Command: CmdPump, ID: &three, State: Switch(CmdPump, true).State}, false},
		{"pwm out of range", FanPWM(101), false},
		{"pwm negative", FanPWM(-1), false},
		{"unknown", ActuatorCommand{Command: "DANCE"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestActuatorCommandWireShape(t *testing.T) {
	b, err := json.Marshal(Pump(1, false))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"command":"PUMP","id":1,"state":false}`, string(b))

	b, err = json.Marshal(FanPWM(35))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"command":"set_fan_pwm","value":35}`, string(b))

	assert.Equal(t, "PUMP#1=off", Pump(1, false).String())
	assert.Equal(t, "set_fan_pwm=35", FanPWM(35).String())
	assert.Equal(t, "LIGHT=on", Switch(CmdLight, true).String())
}

func TestNewSensorReadingIsEmpty(t *testing.T) {
	r := NewSensorReading()
	assert.False(t, r.HasClimate())
	assert.Equal(t, NoReading, r.GasLevel)
	assert.Equal(t, NoReading, r.TankLevel)
	for _, v := range r.SoilMoisture {
		assert.True(t, math.IsNaN(v))
	}

	r.Temperature, r.Humidity = 24, 60
	assert.True(t, r.HasClimate())
}

func TestValidSoilMoisture(t *testing.T) {
	assert.False(t, ValidSoilMoisture(0))
	assert.False(t, ValidSoilMoisture(1))
	assert.True(t, ValidSoilMoisture(1.5))
	assert.True(t, ValidSoilMoisture(100))
	assert.False(t, ValidSoilMoisture(100.1))
	assert.False(t, ValidSoilMoisture(math.NaN()))
}
