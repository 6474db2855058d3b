package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects control-loop counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry prometheus.Gatherer

	ticks          *prometheus.CounterVec
	commands       *prometheus.CounterVec
	alerts         *prometheus.CounterVec
	safetyTrips    *prometheus.CounterVec
	vpdStates      *prometheus.CounterVec
	storeErrors    *prometheus.CounterVec
	droppedReading prometheus.Counter
	droppedAlerts  prometheus.Counter
	fanSpeed       prometheus.Gauge
	vpd            prometheus.Gauge
	tickDuration   prometheus.Histogram
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growbox_ticks_total",
			Help: "Control loop ticks by outcome.",
		}, []string{"outcome"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growbox_commands_total",
			Help: "Actuator commands dispatched by command type and origin.",
		}, []string{"command", "origin"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growbox_alerts_total",
			Help: "Alerts raised by severity.",
		}, []string{"severity"}),
		safetyTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growbox_safety_trips_total",
			Help: "Emergency shutdowns by trigger.",
		}, []string{"trigger"}),
		vpdStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growbox_vpd_controller_state_total",
			Help: "Environmental controller evaluations by resulting state.",
		}, []string{"state"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growbox_vpd_store_errors_total",
			Help: "VPD config store failures by operation.",
		}, []string{"op"}),
		droppedReading: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growbox_readings_dropped_total",
			Help: "Readings dropped because the tick queue was full.",
		}),
		droppedAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growbox_alerts_dropped_total",
			Help: "Alerts discarded because the notification queue was full.",
		}),
		fanSpeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "growbox_fan_speed_percent",
			Help: "Current fan PWM as tracked by the controller.",
		}),
		vpd: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "growbox_vpd_kpa",
			Help: "Last computed vapor pressure deficit.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "growbox_tick_duration_seconds",
			Help:    "Time spent processing one reading.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.ticks, m.commands, m.alerts, m.safetyTrips, m.vpdStates,
		m.storeErrors, m.droppedReading, m.droppedAlerts, m.fanSpeed, m.vpd, m.tickDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Tick(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(outcome).Inc()
	m.tickDuration.Observe(seconds)
}

func (m *Metrics) Command(command, origin string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, origin).Inc()
}

func (m *Metrics) Alert(severity string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(severity).Inc()
}

func (m *Metrics) SafetyTrip(trigger string) {
	if m == nil {
		return
	}
	m.safetyTrips.WithLabelValues(trigger).Inc()
}

func (m *Metrics) VPDState(state string) {
	if m == nil {
		return
	}
	m.vpdStates.WithLabelValues(state).Inc()
}

func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) ReadingDropped() {
	if m == nil {
		return
	}
	m.droppedReading.Inc()
}

func (m *Metrics) AlertDropped() {
	if m == nil {
		return
	}
	m.droppedAlerts.Inc()
}

func (m *Metrics) SetFanSpeed(v int) {
	if m == nil {
		return
	}
	m.fanSpeed.Set(float64(v))
}

func (m *Metrics) SetVPD(v float64) {
	if m == nil {
		return
	}
	m.vpd.Set(v)
}
