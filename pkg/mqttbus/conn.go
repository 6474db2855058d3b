package mqttbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string

	// connect retry policy
	MaxRetries     int
	MaxElapsedTime time.Duration
}

func (c Config) BrokerURL() string { return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port) }

// Connect dials the broker with exponential backoff and disconnects when ctx ends.
func Connect(ctx context.Context, cfg Config, log *slog.Logger) (mqtt.Client, error) {
	if log == nil {
		log = slog.Default()
	}
	addr := cfg.BrokerURL()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(addr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "broker", addr, "error", err)
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("mqtt connected", "broker", addr)
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.MaxElapsedTime
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 10 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 5
	}

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Warn("mqtt connect failed", "broker", addr, "error", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", addr, err)
	}

	go func() {
		<-ctx.Done()
		client.Disconnect(250)
		log.Info("mqtt connection closed", "broker", addr)
	}()
	return client, nil
}

func Close(client mqtt.Client) {
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
}
