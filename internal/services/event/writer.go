package event

import (
	"log/slog"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Writer wraps the non-blocking WriteAPI and remembers when the last
// asynchronous write error happened, for /healthz and /readyz.
type Writer struct {
	api     api.WriteAPI
	log     *slog.Logger
	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
}

func NewWriter(w api.WriteAPI, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	ww := &Writer{
		api:     w,
		log:     log,
		lastErr: time.Now().Add(-24 * time.Hour),
		counts:  make(map[string]int64),
	}
	go func() {
		for err := range w.Errors() {
			if err == nil {
				continue
			}
			ww.mu.Lock()
			ww.lastErr = time.Now()
			ww.mu.Unlock()
			ww.log.Error("influx write failed", "err", err)
		}
	}()
	return ww
}

// Write queues points and counts them per measurement.
func (w *Writer) Write(points ...*write.Point) {
	if w == nil || len(points) == 0 {
		return
	}
	for _, p := range points {
		w.api.WritePoint(p)
	}
	w.mu.Lock()
	for _, p := range points {
		w.counts[p.Name()]++
	}
	w.mu.Unlock()
}

func (w *Writer) Flush() {
	if w != nil {
		w.api.Flush()
	}
}

// LastErrorAge is the time since the last write error.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

func (w *Writer) Count(measurement string) int64 {
	if w == nil {
		return 0
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.counts[measurement]
}
