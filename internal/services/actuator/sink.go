package actuator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
	"github.com/LeonardoBeccarini/growbox_control/pkg/mqttbus"
)

var ErrNoRoute = errors.New("no actuator route available")

// Sink is anything that can deliver a command to the tent hardware.
type Sink interface {
	Send(ctx context.Context, cmd messages.ActuatorCommand) error
}

type availability interface {
	Available() bool
}

func available(s Sink) bool {
	if a, ok := s.(availability); ok {
		return a.Available()
	}
	return true
}

// BusSink publishes commands as JSON on the command topic.
type BusSink struct {
	pub       mqttbus.IPublisher
	connected func() bool
}

// NewBusSink wraps pub. connected reports the broker link; nil means always up.
func NewBusSink(pub mqttbus.IPublisher, connected func() bool) *BusSink {
	return &BusSink{pub: pub, connected: connected}
}

func (s *BusSink) Send(_ context.Context, cmd messages.ActuatorCommand) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", cmd, err)
	}
	if err := s.pub.Publish(body); err != nil {
		return fmt.Errorf("publish %s: %w", cmd, err)
	}
	return nil
}

func (s *BusSink) Available() bool {
	return s.connected == nil || s.connected()
}

// FanOut delivers each command to every available route.
type FanOut struct {
	routes []namedSink
	log    *slog.Logger
}

type namedSink struct {
	name string
	sink Sink
}

func NewFanOut(log *slog.Logger) *FanOut {
	if log == nil {
		log = slog.Default()
	}
	return &FanOut{log: log}
}

// Add registers a route; nil sinks are ignored.
func (f *FanOut) Add(name string, s Sink) *FanOut {
	if s != nil {
		f.routes = append(f.routes, namedSink{name: name, sink: s})
	}
	return f
}

// Send succeeds if at least one route accepted the command.
func (f *FanOut) Send(ctx context.Context, cmd messages.ActuatorCommand) error {
	var (
		errs      []error
		delivered int
	)
	for _, r := range f.routes {
		if !available(r.sink) {
			continue
		}
		if err := r.sink.Send(ctx, cmd); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.name, err))
			continue
		}
		delivered++
		f.log.Debug("command sent", "route", r.name, "command", cmd.String())
	}
	if delivered > 0 {
		if len(errs) > 0 {
			f.log.Warn("command partially delivered", "command", cmd.String(), "err", errors.Join(errs...))
		}
		return nil
	}
	if len(errs) == 0 {
		return ErrNoRoute
	}
	return errors.Join(errs...)
}

func (f *FanOut) Available() bool {
	for _, r := range f.routes {
		if available(r.sink) {
			return true
		}
	}
	return false
}
