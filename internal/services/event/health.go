package event

import (
	"encoding/json"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Deps are the links reported by /healthz and /readyz. Nil members are not configured.
type Deps struct {
	MQTT   mqtt.Client
	Writer *Writer
	Device func() bool
}

type depStatus struct {
	mqtt, influx, device *bool
}

func (d Deps) probe(minErrorAge time.Duration) depStatus {
	var s depStatus
	if d.MQTT != nil {
		ok := d.MQTT.IsConnectionOpen()
		s.mqtt = &ok
	}
	if d.Writer != nil {
		ok := d.Writer.LastErrorAge() > minErrorAge
		s.influx = &ok
	}
	if d.Device != nil {
		ok := d.Device()
		s.device = &ok
	}
	return s
}

type healthHandler struct {
	deps        Deps
	minErrorAge time.Duration
}

func NewHealthHandler(deps Deps) http.Handler {
	return &healthHandler{deps: deps, minErrorAge: 30 * time.Second}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status          string   `json:"status"`
		MQTTConnected   *bool    `json:"mqtt_connected,omitempty"`
		InfluxOK        *bool    `json:"influx_ok,omitempty"`
		DeviceConnected *bool    `json:"device_connected,omitempty"`
		LastWriteErrorS *float64 `json:"last_write_error_age_sec,omitempty"`
	}
	p := h.deps.probe(h.minErrorAge)
	st := status{MQTTConnected: p.mqtt, InfluxOK: p.influx, DeviceConnected: p.device}
	if h.deps.Writer != nil {
		age := h.deps.Writer.LastErrorAge().Seconds()
		st.LastWriteErrorS = &age
	}

	up, total := 0, 0
	for _, b := range []*bool{p.mqtt, p.influx, p.device} {
		if b == nil {
			continue
		}
		total++
		if *b {
			up++
		}
	}
	switch {
	case up == total:
		st.Status = "ok"
	case up > 0:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// readyHandler answers 200 only when actuator commands can leave the process
// and recent Influx writes succeeded.
type readyHandler struct {
	deps     Deps
	minError time.Duration
}

func NewReadyHandler(deps Deps, minOkErrorAge time.Duration) http.Handler {
	return &readyHandler{deps: deps, minError: minOkErrorAge}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	p := h.deps.probe(h.minError)
	route := (p.mqtt != nil && *p.mqtt) || (p.device != nil && *p.device)
	ready := route && (p.influx == nil || *p.influx)

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}
