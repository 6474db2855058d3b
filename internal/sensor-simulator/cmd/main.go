package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	sensorSimulator "github.com/LeonardoBeccarini/growbox_control/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/growbox_control/pkg/mqttbus"
)

func main() {
	host := flag.String("mqtt-host", "localhost", "MQTT broker host")
	port := flag.Int("mqtt-port", 1883, "MQTT broker port")
	clientID := flag.String("client-id", "growbox-simulator", "MQTT client ID")
	device := flag.String("device", "esp32_sim", "device name reported in telemetry")
	dataTopic := flag.String("data-topic", "growbox/data", "telemetry topic")
	commandTopic := flag.String("command-topic", "growbox/command", "actuator command topic")
	interval := flag.Duration("interval", 5*time.Second, "publish interval")
	pumpRun := flag.Duration("pump-run", 30*time.Second, "how long a pump runs per command")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	lvl := slog.LevelInfo
	if *debug {
		lvl = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: lvl, TimeFormat: time.Kitchen}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := mqttbus.Connect(ctx, mqttbus.Config{
		Host:     *host,
		Port:     *port,
		ClientID: *clientID,
	}, log)
	if err != nil {
		log.Error("mqtt connect", "err", err)
		os.Exit(1)
	}
	defer mqttbus.Close(client)

	publisher := mqttbus.NewPublisher(client, *dataTopic, 0)
	consumer := mqttbus.NewConsumer(client, 1, log, *commandTopic)
	generator := sensorSimulator.NewDataGenerator(time.Now().UnixNano(), *pumpRun)

	sim := sensorSimulator.NewSensorSimulator(*device, consumer, publisher, generator, log)
	log.Info("simulator started", "device", *device, "interval", *interval)
	sim.Start(ctx, *interval)
}
