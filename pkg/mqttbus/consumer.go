package mqttbus

import (
	"context"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one message. Returned errors are logged, never retried.
type Handler func(topic string, msg mqtt.Message) error

type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(h Handler)
}

// Consumer subscribes a set of topic filters on a shared client.
type Consumer struct {
	client  mqtt.Client
	topics  []string
	qos     byte
	handler Handler
	log     *slog.Logger
}

func NewConsumer(client mqtt.Client, qos byte, log *slog.Logger, topics ...string) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{client: client, topics: topics, qos: qos, log: log}
}

func (c *Consumer) SetHandler(h Handler) { c.handler = h }

// ConsumeMessage subscribes every topic and blocks until ctx is cancelled.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	for _, topic := range c.topics {
		token := c.client.Subscribe(topic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
			if c.handler == nil {
				c.log.Warn("no handler set", "topic", topic)
				return
			}
			if err := c.handler(topic, msg); err != nil {
				c.log.Warn("message handling failed", "topic", msg.Topic(), "error", err)
			}
		})
		if token.Wait() && token.Error() != nil {
			c.log.Error("subscribe failed", "topic", topic, "error", token.Error())
			continue
		}
		c.log.Info("subscribed", "topic", topic, "qos", c.qos)
	}

	<-ctx.Done()

	for _, topic := range c.topics {
		c.client.Unsubscribe(topic).WaitTimeout(250 * time.Millisecond)
	}
}
