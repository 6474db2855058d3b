package sensor_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
)

// Tent dynamics, per minute of simulated time.
const (
	relaxPerMin      = 0.08 // share of the gap to the equilibrium closed each minute
	soilDecayPerMin  = 0.05 // % moisture lost per probe
	soilGainPerMin   = 4.0  // % moisture gained per probe while its pump runs
	tankDrawPerMin   = 60   // raw ADC units used per running pump
	defaultPumpRun   = 30 * time.Second
	ambientTemp      = 22.0
	ambientHumidity  = 55.0
	lampHeat         = 5.0
	lampLux          = 25000.0
	humidifierOutput = 20.0
	baseGas          = 420
)

// Actuators is the simulated output state driven by received commands.
type Actuators struct {
	Light      bool
	Humidifier bool
	Intake     bool
	Exhaust    bool
	FanPWM     int
	pumpUntil  [2]time.Time
}

// DataGenerator evolves the tent climate between samples.
type DataGenerator struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	last    time.Time
	now     func() time.Time
	pumpRun time.Duration

	temp, humidity float64
	tank           float64
	soil           [messages.SoilProbes]float64
	act            Actuators
}

func NewDataGenerator(seed int64, pumpRun time.Duration) *DataGenerator {
	if pumpRun <= 0 {
		pumpRun = defaultPumpRun
	}
	g := &DataGenerator{
		rnd:      rand.New(rand.NewSource(seed)),
		now:      time.Now,
		pumpRun:  pumpRun,
		temp:     ambientTemp,
		humidity: ambientHumidity,
		tank:     3500,
	}
	for i := range g.soil {
		g.soil[i] = 45 + g.rnd.Float64()*10
	}
	return g
}

// Apply updates the actuator state from a command addressed to the device.
func (g *DataGenerator) Apply(cmd messages.ActuatorCommand) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.advance(g.now())

	on := cmd.State != nil && *cmd.State
	switch cmd.Command {
	case messages.CmdLight:
		g.act.Light = on
	case messages.CmdHumidifier:
		g.act.Humidifier = on
	case messages.CmdFanIntake:
		g.act.Intake = on
	case messages.CmdFanExhaust:
		g.act.Exhaust = on
	case messages.CmdSetFanPWM:
		if cmd.Value != nil {
			g.act.FanPWM = *cmd.Value
		}
	case messages.CmdPump:
		if cmd.ID == nil || *cmd.ID < 1 || *cmd.ID > 2 {
			return
		}
		// The firmware runs a pump for a fixed time and stops it on its own.
		if on {
			g.act.pumpUntil[*cmd.ID-1] = g.now().Add(g.pumpRun)
		} else {
			g.act.pumpUntil[*cmd.ID-1] = time.Time{}
		}
	}
}

// Actuators returns the current output state.
func (g *DataGenerator) Actuators() Actuators {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.act
}

// Next advances the model to now and returns a sample with sensor noise.
func (g *DataGenerator) Next() messages.SensorReading {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.advance(now)

	r := messages.NewSensorReading()
	r.Timestamp = now.UTC()
	r.Temperature = round1(g.temp + g.rnd.NormFloat64()*0.1)
	r.Humidity = round1(clamp(g.humidity+g.rnd.NormFloat64()*0.5, 0, 100))
	r.Lux = 0
	if g.act.Light {
		r.Lux = math.Round(lampLux + g.rnd.NormFloat64()*200)
	}
	r.GasLevel = baseGas + g.rnd.Intn(40)
	r.TankLevel = int(g.tank)
	for i, v := range g.soil {
		r.SoilMoisture[i] = round1(clamp(v+g.rnd.NormFloat64()*0.3, 0, 100))
	}
	return r
}

func (g *DataGenerator) advance(now time.Time) {
	if g.last.IsZero() {
		g.last = now
		return
	}
	dtMin := now.Sub(g.last).Minutes()
	g.last = now
	if dtMin <= 0 {
		return
	}

	airflow := float64(g.act.FanPWM) / 100
	if g.act.Exhaust {
		airflow = math.Max(airflow, 0.6)
	}
	if g.act.Intake {
		airflow += 0.2
	}

	targetTemp := ambientTemp - 2*airflow
	if g.act.Light {
		targetTemp += lampHeat
	}
	targetHum := ambientHumidity + 15 - 25*airflow
	if g.act.Humidifier {
		targetHum += humidifierOutput
	}
	k := 1 - math.Pow(1-relaxPerMin, dtMin)
	g.temp += (targetTemp - g.temp) * k
	g.humidity += (clamp(targetHum, 0, 100) - g.humidity) * k

	for p := range g.act.pumpUntil {
		running := pumpMinutes(g.act.pumpUntil[p], now, dtMin)
		for i := p * 3; i < p*3+3; i++ {
			g.soil[i] = clamp(g.soil[i]-soilDecayPerMin*dtMin+soilGainPerMin*running, 0, 100)
		}
		g.tank = math.Max(0, g.tank-tankDrawPerMin*running)
	}
}

// pumpMinutes is how much of the last dtMin minutes a pump stopping at until was running.
func pumpMinutes(until, now time.Time, dtMin float64) float64 {
	if until.IsZero() {
		return 0
	}
	start := now.Add(-time.Duration(dtMin * float64(time.Minute)))
	if !until.After(start) {
		return 0
	}
	if until.After(now) {
		return dtMin
	}
	return until.Sub(start).Minutes()
}

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

func round1(v float64) float64 { return math.Round(v*10) / 10 }
