package sensor_simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
	"github.com/LeonardoBeccarini/growbox_control/pkg/dedup"
	"github.com/LeonardoBeccarini/growbox_control/pkg/mqttbus"
)

// frame is the firmware telemetry envelope.
type frame struct {
	Type   string    `json:"type"`
	Device string    `json:"device"`
	Data   frameData `json:"data"`
}

type frameData struct {
	Temp float64   `json:"temp"`
	Hum  float64   `json:"hum"`
	Lux  float64   `json:"lux"`
	Gas  int       `json:"gas"`
	Tank int       `json:"tank"`
	Soil []float64 `json:"soil"`
}

type SensorSimulator struct {
	device    string
	generator *DataGenerator
	publisher mqttbus.IPublisher
	consumer  mqttbus.IConsumer
	deduper   *dedup.Deduper
	log       *slog.Logger
}

func NewSensorSimulator(device string, consumer mqttbus.IConsumer, publisher mqttbus.IPublisher,
	gen *DataGenerator, log *slog.Logger) *SensorSimulator {
	if log == nil {
		log = slog.Default()
	}
	return &SensorSimulator{
		device:    device,
		generator: gen,
		publisher: publisher,
		consumer:  consumer,
		deduper:   dedup.New(2*time.Minute, 10000),
		log:       log,
	}
}

// Start listens for commands and publishes a sample every interval until ctx ends.
func (s *SensorSimulator) Start(ctx context.Context, interval time.Duration) {
	s.consumer.SetHandler(s.handleMessage)
	go s.consumer.ConsumeMessage(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.publish(); err != nil {
				s.log.Warn("publish failed", "err", err)
			}
		}
	}
}

func (s *SensorSimulator) publish() error {
	r := s.generator.Next()
	payload, err := json.Marshal(encodeFrame(s.device, r))
	if err != nil {
		return err
	}
	s.log.Debug("telemetry published", "temp", r.Temperature, "humidity", r.Humidity,
		"soil", r.SoilMoisture, "tank", r.TankLevel)
	return s.publisher.Publish(payload)
}

func encodeFrame(device string, r messages.SensorReading) frame {
	return frame{
		Type:   "sensor_update",
		Device: device,
		Data: frameData{
			Temp: r.Temperature,
			Hum:  r.Humidity,
			Lux:  r.Lux,
			Gas:  r.GasLevel,
			Tank: r.TankLevel,
			Soil: r.SoilMoisture[:],
		},
	}
}

func (s *SensorSimulator) handleMessage(_ string, msg mqtt.Message) error {
	// QoS1 redeliveries carry the same payload.
	if msg.Qos() > 0 && !s.deduper.ShouldProcessPayload(msg.Payload()) {
		return nil
	}

	var cmd messages.ActuatorCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		return fmt.Errorf("invalid actuator command: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return err
	}
	s.generator.Apply(cmd)
	s.log.Info("command applied", "command", cmd.String())
	return nil
}
