package monitor

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/spigell/interview-guard/internal/integrity"
)

// forwarder moves anomalies from the queue to the ledger, one per debounce
// window, in arrival order.
type forwarder struct {
	queue    *Queue
	debounce *Debouncer
	clock    clock.Clock
	deliver  func(ctx context.Context, a integrity.Anomaly)
}

// step forwards at most one anomaly. When nothing was sent it returns how
// long to wait before the window opens again.
func (f *forwarder) step(ctx context.Context) (bool, time.Duration) {
	if f.queue.Len() == 0 {
		return false, 0
	}
	if d := f.debounce.Delay(); d > 0 {
		return false, d
	}
	if !f.debounce.Allow() {
		return false, f.debounce.Delay()
	}

	a, ok := f.queue.Pop()
	if !ok {
		return false, 0
	}
	f.deliver(ctx, a)
	return true, 0
}

func (f *forwarder) run(ctx context.Context) {
	for {
		sent, wait := f.step(ctx)
		if sent {
			continue
		}

		if wait <= 0 {
			select {
			case <-ctx.Done():
				return
			case <-f.queue.Ready():
			}
			continue
		}

		timer := f.clock.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
