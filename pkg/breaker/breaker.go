package breaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Settings mirrors the knobs exposed through the environment.
type Settings struct {
	Name     string
	Failures int           // consecutive failures that open the breaker
	OpenFor  time.Duration // time spent open before a half-open probe
	Interval time.Duration // closed-state counter reset period, 0 keeps counts
}

func New(s Settings, log *slog.Logger) *gobreaker.CircuitBreaker {
	if s.Failures < 1 {
		s.Failures = 1
	}
	if s.OpenFor <= 0 {
		s.OpenFor = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	fails := uint32(s.Failures)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     s.Name,
		Interval: s.Interval,
		Timeout:  s.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// IsOpen reports whether err came from a breaker refusing the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
