package monitor

import (
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// Debouncer lets at most one anomaly through per window, across all
// modalities of a session.
type Debouncer struct {
	clock   clock.Clock
	window  time.Duration
	limiter *rate.Limiter
}

// NewDebouncer creates a debouncer on the given clock.
func NewDebouncer(window time.Duration, clk clock.Clock) *Debouncer {
	if clk == nil {
		clk = clock.New()
	}
	return &Debouncer{
		clock:   clk,
		window:  window,
		limiter: rate.NewLimiter(rate.Every(window), 1),
	}
}

// Allow consumes the window when it is open.
func (d *Debouncer) Allow() bool {
	return d.limiter.AllowN(d.clock.Now(), 1)
}

// Delay is how long until the window opens again. It consumes nothing.
func (d *Debouncer) Delay() time.Duration {
	tokens := d.limiter.TokensAt(d.clock.Now())
	if tokens >= 1 {
		return 0
	}
	return time.Duration((1 - tokens) * float64(d.window))
}
