package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/growbox_control/internal/metrics"
	"github.com/LeonardoBeccarini/growbox_control/internal/services/actuator"
	"github.com/LeonardoBeccarini/growbox_control/internal/services/alert"
	"github.com/LeonardoBeccarini/growbox_control/internal/services/api"
	"github.com/LeonardoBeccarini/growbox_control/internal/services/automation"
	"github.com/LeonardoBeccarini/growbox_control/internal/services/device"
	"github.com/LeonardoBeccarini/growbox_control/internal/services/event"
	"github.com/LeonardoBeccarini/growbox_control/internal/services/telemetry"
	"github.com/LeonardoBeccarini/growbox_control/internal/services/vpdstore"
	"github.com/LeonardoBeccarini/growbox_control/pkg/breaker"
	"github.com/LeonardoBeccarini/growbox_control/pkg/dedup"
	"github.com/LeonardoBeccarini/growbox_control/pkg/mqttbus"
)

const healthService = "growbox.automation"

func main() {
	cfg := loadConfig()
	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("automation service stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// === VPD config store ===
	var inner vpdstore.Store
	if cfg.DBPath != "" {
		db, err := vpdstore.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		inner = vpdstore.NewSQLStore(db, cfg.LogLimit, cfg.LogRetain)
		log.Info("vpd config store", "backend", "sqlite", "path", cfg.DBPath)
	} else {
		inner = vpdstore.NewMemoryStore(cfg.LogLimit)
		log.Warn("vpd config store is in memory, settings are lost on restart")
	}
	store := vpdstore.WithBreaker(inner, breaker.New(cfg.StoreBreaker, log))

	// === MQTT ===
	client, err := mqttbus.Connect(ctx, cfg.MQTT, log.With("component", "mqtt"))
	if err != nil {
		return err
	}
	defer mqttbus.Close(client)

	// === Alerts ===
	alerts := alert.NewDispatcher(cfg.AlertQueue, cfg.AlertTimeout, log.With("component", "alerts"))
	alerts.OnDrop(m.AlertDropped)
	alerts.Add("mqtt", alert.NewBus(mqttbus.NewPublisher(client, cfg.AlertTopic, 1)))
	if cfg.WebhookURL != "" {
		alerts.Add("webhook", alert.NewWebhook(cfg.WebhookURL, nil, breaker.New(cfg.WebhookBreaker, log)))
	}

	// === Event recording ===
	var (
		influx   influxdb2.Client
		writer   *event.Writer
		recorder automation.TickRecorder
	)
	if cfg.InfluxURL != "" {
		opts := influxdb2.DefaultOptions().
			SetBatchSize(uint(cfg.BatchSize)).
			SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
		influx = influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken, opts)
		defer influx.Close()
		writer = event.NewWriter(influx.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket), log.With("component", "influx"))
		defer writer.Flush()
		recorder = event.NewRecorder(writer)
	}

	// === Control loop ===
	var frames *telemetry.Handler
	hub := device.NewHub(telemetry.SourceWebSocket, func(source string, payload []byte) error {
		return frames.HandleFrame(source, payload)
	}, log.With("component", "device"))
	defer hub.Close()

	sink := actuator.NewFanOut(log.With("component", "sink")).
		Add("mqtt", actuator.NewBusSink(mqttbus.NewPublisher(client, cfg.CommandTopic, 1), client.IsConnectionOpen)).
		Add("device", hub)

	orch, err := automation.New(automation.Options{
		Config:       cfg.Automation,
		Sink:         sink,
		Alerts:       alerts,
		Store:        store,
		Recorder:     recorder,
		Metrics:      m,
		Logger:       log.With("component", "automation"),
		Location:     loadLocation(cfg.TimeZone),
		StoreTimeout: cfg.StoreTimeout,
	})
	if err != nil {
		return fmt.Errorf("automation config: %w", err)
	}
	runner := automation.NewRunner(orch, cfg.QueueSize, log, m)
	frames = telemetry.NewHandler(runner.Submit, dedup.New(cfg.DedupTTL, 20000), log.With("component", "telemetry"))

	consumer := mqttbus.NewConsumer(client, 1, log.With("component", "mqtt"), cfg.DataTopic)
	consumer.SetHandler(frames.Handle)

	go alerts.Run(ctx)
	go runner.Run(ctx)
	go consumer.ConsumeMessage(ctx)

	// === HTTP ===
	deps := event.Deps{MQTT: client, Writer: writer, Device: hub.Available}
	routes := api.Options{
		Controller:   orch,
		Store:        store,
		Logger:       log.With("component", "http"),
		AllowOrigins: cfg.AllowOrigins,
		StoreTimeout: cfg.StoreTimeout,
		Device:       hub,
		Metrics:      m.Handler(),
		Health:       event.NewHealthHandler(deps),
		Ready:        event.NewReadyHandler(deps, 2*cfg.FlushInterval),
	}
	if influx != nil {
		routes.Events = event.NewRecentEventsHandler(influx, cfg.InfluxOrg, cfg.InfluxBucket)
	}
	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           api.NewRouter(routes),
		ReadHeaderTimeout: 5 * time.Second,
	}
	httpErr := make(chan error, 1)
	go func() {
		log.Info("HTTP listening", "port", cfg.HTTPPort)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	// === gRPC health ===
	lis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	gs := grpc.NewServer()
	hsrv := health.NewServer()
	healthpb.RegisterHealthServer(gs, hsrv)
	go func() {
		log.Info("gRPC health listening", "port", cfg.GRPCPort)
		if err := gs.Serve(lis); err != nil {
			log.Error("grpc server", "err", err)
		}
	}()
	go reportHealth(ctx, hsrv, client, hub)

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-httpErr:
		stop()
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hsrv.Shutdown()
	gs.GracefulStop()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "err", err)
	}
	return nil
}

// reportHealth keeps the gRPC health status in line with the actuator routes.
func reportHealth(ctx context.Context, hsrv *health.Server, client mqtt.Client, hub *device.Hub) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if client.IsConnectionOpen() || hub.Available() {
			status = healthpb.HealthCheckResponse_SERVING
		}
		hsrv.SetServingStatus(healthService, status)
		hsrv.SetServingStatus("", status)

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
