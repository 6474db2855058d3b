package main

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/entities"
	"github.com/LeonardoBeccarini/growbox_control/pkg/breaker"
	"github.com/LeonardoBeccarini/growbox_control/pkg/mqttbus"
)

type Config struct {
	LogLevel string
	TimeZone string

	MQTT         mqttbus.Config
	DataTopic    string
	CommandTopic string
	AlertTopic   string

	InfluxURL     string // empty disables event recording
	InfluxToken   string
	InfluxOrg     string
	InfluxBucket  string
	BatchSize     int
	FlushInterval time.Duration

	DBPath    string // empty keeps the VPD config in memory
	LogLimit  int
	LogRetain int

	HTTPPort     int
	GRPCPort     int
	AllowOrigins []string

	WebhookURL   string
	AlertQueue   int
	AlertTimeout time.Duration

	StoreBreaker   breaker.Settings
	WebhookBreaker breaker.Settings

	QueueSize    int
	StoreTimeout time.Duration
	DedupTTL     time.Duration

	Automation entities.AutomationConfig
}

func env(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func envFloat(k string, d float64) float64 {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if t, err := time.ParseDuration(v); err == nil {
			return t
		}
	}
	return d
}

func envList(k, d string) []string {
	var out []string
	for _, p := range strings.Split(env(k, d), ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func loadConfig() Config {
	host, _ := os.Hostname()
	def := entities.DefaultAutomationConfig()

	return Config{
		LogLevel: env("LOG_LEVEL", "info"),
		TimeZone: env("TZ", "Local"),

		MQTT: mqttbus.Config{
			Host:           env("MQTT_HOST", "localhost"),
			Port:           envInt("MQTT_PORT", 1883),
			User:           env("MQTT_USER", ""),
			Password:       env("MQTT_PASSWORD", ""),
			ClientID:       env("MQTT_CLIENT_ID", "growbox-automation-"+host),
			MaxRetries:     envInt("MQTT_CONNECT_RETRIES", 5),
			MaxElapsedTime: envDur("MQTT_CONNECT_TIMEOUT", 30*time.Second),
		},
		DataTopic:    env("MQTT_DATA_TOPIC", "growbox/data"),
		CommandTopic: env("MQTT_COMMAND_TOPIC", "growbox/command"),
		AlertTopic:   env("MQTT_ALERT_TOPIC", "growbox/alerts"),

		InfluxURL:     env("INFLUX_URL", ""),
		InfluxToken:   env("INFLUX_TOKEN", ""),
		InfluxOrg:     env("INFLUX_ORG", "growbox"),
		InfluxBucket:  env("INFLUX_BUCKET", "growbox"),
		BatchSize:     envInt("WRITE_BATCH_SIZE", 20),
		FlushInterval: envDur("WRITE_FLUSH_INTERVAL", time.Second),

		DBPath:    env("VPD_DB_PATH", "growbox.db"),
		LogLimit:  envInt("VPD_LOG_LIMIT", 50),
		LogRetain: envInt("VPD_LOG_RETAIN", 1000),

		HTTPPort:     envInt("HTTP_PORT", 8080),
		GRPCPort:     envInt("GRPC_PORT", 50051),
		AllowOrigins: envList("CORS_ALLOW_ORIGINS", "*"),

		WebhookURL:   env("ALERT_WEBHOOK_URL", ""),
		AlertQueue:   envInt("ALERT_QUEUE_SIZE", 64),
		AlertTimeout: envDur("ALERT_TIMEOUT", 5*time.Second),

		StoreBreaker: breaker.Settings{
			Name:     "vpd-store",
			Failures: envInt("STORE_CB_FAILURES", 3),
			OpenFor:  envDur("STORE_CB_OPEN", 30*time.Second),
		},
		WebhookBreaker: breaker.Settings{
			Name:     "alert-webhook",
			Failures: envInt("WEBHOOK_CB_FAILURES", 3),
			OpenFor:  envDur("WEBHOOK_CB_OPEN", time.Minute),
		},

		QueueSize:    envInt("TICK_QUEUE_SIZE", 256),
		StoreTimeout: envDur("STORE_TIMEOUT", 2*time.Second),
		DedupTTL:     envDur("DEDUP_TTL", 10*time.Minute),

		Automation: entities.AutomationConfig{
			CooldownMinutes:    envInt("COOLDOWN_MINUTES", def.CooldownMinutes),
			DryThreshold:       envFloat("DRY_THRESHOLD", def.DryThreshold),
			ManualPauseMinutes: envInt("MANUAL_PAUSE_MINUTES", def.ManualPauseMinutes),
			LightStartHour:     envInt("LIGHT_START_HOUR", def.LightStartHour),
			LightDuration:      envInt("LIGHT_DURATION", def.LightDuration),
			VPDMin:             envFloat("VPD_MIN", def.VPDMin),
			VPDMax:             envFloat("VPD_MAX", def.VPDMax),
			MaxTempSafe:        envFloat("MAX_TEMP_SAFE", def.MaxTempSafe),
			MaxGasSafe:         envInt("MAX_GAS_SAFE", def.MaxGasSafe),
		},
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: lvl, TimeFormat: time.DateTime}))
}

func loadLocation(name string) *time.Location {
	if name == "" || name == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("unknown time zone, using local", "tz", name, "err", err)
		return time.Local
	}
	return loc
}
