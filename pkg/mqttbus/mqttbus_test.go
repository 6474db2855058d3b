package mqttbus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type token struct {
	err     error
	pending bool
}

func (t token) Wait() bool                     { return !t.pending }
func (t token) WaitTimeout(time.Duration) bool { return !t.pending }
func (t token) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}
func (t token) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mqtt.Client
	mu       sync.Mutex
	pub      []published
	pubErr   error
	pending  bool
	handlers map[string]mqtt.MessageHandler
	unsubbed []string
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pub = append(c.pub, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return token{err: c.pubErr, pending: c.pending}
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		c.handlers = map[string]mqtt.MessageHandler{}
	}
	c.handlers[topic] = cb
	return token{}
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubbed = append(c.unsubbed, topics...)
	return token{}
}

func (c *fakeClient) handler(topic string) mqtt.MessageHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers[topic]
}

type message struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m message) Topic() string   { return m.topic }
func (m message) Payload() []byte { return m.payload }

func TestPublisher(t *testing.T) {
	c := &fakeClient{}
	p := NewPublisher(c, "growbox/command", 1)

	require.NoError(t, p.Publish([]byte(`{"command":"LIGHT","state":true}`)))
	require.NoError(t, p.PublishTo("growbox/alerts", []byte(`{}`)))
	require.Len(t, c.pub, 2)
	assert.Equal(t, "growbox/command", c.pub[0].topic)
	assert.Equal(t, byte(1), c.pub[0].qos)
	assert.Equal(t, "growbox/alerts", c.pub[1].topic)

	c.pubErr = errors.New("not connected")
	assert.ErrorContains(t, p.Publish([]byte("x")), "not connected")

	c.pubErr, c.pending = nil, true
	assert.ErrorIs(t, p.Publish([]byte("x")), ErrPublishTimeout)
}

func TestConsumerDispatchesUntilCancelled(t *testing.T) {
	c := &fakeClient{}
	cons := NewConsumer(c, 1, slog.New(slog.NewTextHandler(io.Discard, nil)), "growbox/data")

	got := make(chan string, 1)
	cons.SetHandler(func(topic string, msg mqtt.Message) error {
		got <- topic + " " + string(msg.Payload())
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cons.ConsumeMessage(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return c.handler("growbox/data") != nil }, time.Second, 5*time.Millisecond)
	c.handler("growbox/data")(c, message{topic: "growbox/data", payload: []byte("hello")})
	assert.Equal(t, "growbox/data hello", <-got)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, []string{"growbox/data"}, c.unsubbed)
}

func TestBrokerURL(t *testing.T) {
	assert.Equal(t, "tcp://mosquitto:1883", Config{Host: "mosquitto", Port: 1883}.BrokerURL())
}
