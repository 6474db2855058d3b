package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
)

// Target delivers one alert to an external channel.
type Target interface {
	Deliver(ctx context.Context, a messages.Alert) error
}

type namedTarget struct {
	name   string
	target Target
}

// Dispatcher queues alerts and delivers them from a single worker so that the
// control loop never waits on a notification channel.
type Dispatcher struct {
	queue   chan messages.Alert
	targets []namedTarget
	timeout time.Duration
	log     *slog.Logger
	dropped func()
}

func NewDispatcher(size int, timeout time.Duration, log *slog.Logger) *Dispatcher {
	if size <= 0 {
		size = 64
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{queue: make(chan messages.Alert, size), timeout: timeout, log: log}
}

func (d *Dispatcher) Add(name string, t Target) *Dispatcher {
	if t != nil {
		d.targets = append(d.targets, namedTarget{name: name, target: t})
	}
	return d
}

// OnDrop registers a callback invoked whenever an alert is discarded.
func (d *Dispatcher) OnDrop(f func()) { d.dropped = f }

// Notify enqueues a without blocking.
func (d *Dispatcher) Notify(_ context.Context, a messages.Alert) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	select {
	case d.queue <- a:
	default:
		d.log.Warn("alert queue full, alert dropped", "title", a.Title, "severity", a.Severity)
		if d.dropped != nil {
			d.dropped()
		}
	}
}

// Run delivers queued alerts until ctx is done, then drains what is left.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case a := <-d.queue:
			d.deliver(ctx, a)
		case <-ctx.Done():
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case a := <-d.queue:
			d.deliver(context.Background(), a)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, a messages.Alert) {
	for _, t := range d.targets {
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		err := t.target.Deliver(tctx, a)
		cancel()
		if err != nil {
			d.log.Warn("alert delivery failed", "target", t.name, "title", a.Title, "err", err)
			continue
		}
		d.log.Debug("alert delivered", "target", t.name, "title", a.Title)
	}
}
