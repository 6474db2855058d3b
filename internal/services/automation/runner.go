package automation

import (
	"context"
	"log/slog"

	"github.com/LeonardoBeccarini/growbox_control/internal/metrics"
	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
)

const DefaultQueueSize = 256

// Processor is the tick entry point drained by a Runner.
type Processor interface {
	Process(ctx context.Context, reading messages.SensorReading) TickReport
}

// Runner feeds readings to a Processor one at a time, in arrival order.
type Runner struct {
	proc    Processor
	queue   chan messages.SensorReading
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewRunner(proc Processor, size int, log *slog.Logger, m *metrics.Metrics) *Runner {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		proc:    proc,
		queue:   make(chan messages.SensorReading, size),
		log:     log,
		metrics: m,
	}
}

// Submit enqueues reading without blocking. It returns false when the queue is full
// and the reading was dropped.
func (r *Runner) Submit(reading messages.SensorReading) bool {
	select {
	case r.queue <- reading:
		return true
	default:
		r.log.Warn("tick queue full, reading dropped", "source", reading.Source, "capacity", cap(r.queue))
		r.metrics.ReadingDropped()
		return false
	}
}

// Run processes queued readings until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	r.log.Info("control loop started", "queue", cap(r.queue))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("control loop stopped")
			return
		case reading := <-r.queue:
			// Ticks run to completion even while shutting down.
			r.proc.Process(context.WithoutCancel(ctx), reading)
		}
	}
}
