package mqttbus

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var ErrPublishTimeout = errors.New("mqtt publish timed out")

type IPublisher interface {
	Publish(payload []byte) error
	PublishTo(topic string, payload []byte) error
	Close()
}

// Publisher publishes to a default topic with a fixed QoS.
type Publisher struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
}

func NewPublisher(client mqtt.Client, topic string, qos byte) *Publisher {
	return &Publisher{client: client, topic: topic, qos: qos, timeout: 5 * time.Second}
}

func (p *Publisher) Publish(payload []byte) error { return p.PublishTo(p.topic, payload) }

func (p *Publisher) PublishTo(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("%w: topic=%s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Close() { Close(p.client) }
