package telemetry

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
	"github.com/LeonardoBeccarini/growbox_control/pkg/dedup"
)

const (
	SourceMQTT      = "mqtt"
	SourceWebSocket = "websocket"
)

// Submitter hands a reading to the control loop; false means it was dropped.
type Submitter func(messages.SensorReading) bool

// Handler decodes telemetry from the bus or the device link and submits it.
type Handler struct {
	submit Submitter
	dedup  *dedup.Deduper
	log    *slog.Logger
	now    func() time.Time
}

func NewHandler(submit Submitter, d *dedup.Deduper, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{submit: submit, dedup: d, log: log, now: time.Now}
}

// Handle is a mqttbus.Handler. QoS>0 redeliveries are dropped by message id and payload.
func (h *Handler) Handle(topic string, m mqtt.Message) error {
	payload := m.Payload()
	if m.Qos() > 0 {
		key := fmt.Sprintf("%s#%d#%s", m.Topic(), m.MessageID(), dedup.PayloadKey(payload))
		if !h.dedup.ShouldProcess(key) {
			h.log.Debug("duplicate telemetry dropped", "topic", m.Topic(), "id", m.MessageID())
			return nil
		}
	}
	return h.HandleFrame(SourceMQTT, payload)
}

// HandleFrame decodes one payload from source. Non-telemetry frames are ignored.
func (h *Handler) HandleFrame(source string, payload []byte) error {
	r, err := Decode(payload, source, h.now())
	if errors.Is(err, ErrNotTelemetry) {
		return nil
	}
	if err != nil {
		return err
	}
	if !h.submit(r) {
		return fmt.Errorf("reading from %s dropped: control loop busy", source)
	}
	h.log.Debug("telemetry accepted", "source", source, "device", r.Device,
		"temp", r.Temperature, "humidity", r.Humidity, "gas", r.GasLevel)
	return nil
}
