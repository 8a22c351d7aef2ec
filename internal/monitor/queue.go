package monitor

import (
	"maps"
	"sync"
	"time"

	"github.com/spigell/interview-guard/internal/integrity"
)

// occurrencesKey counts anomalies folded into a pending one.
const occurrencesKey = "occurrences"

// Queue sits between detection and the ledger. Push never blocks: an anomaly
// of a type already pending within the window is coalesced into it, and when
// the queue is full the oldest pending anomaly is dropped.
type Queue struct {
	size   int
	window time.Duration
	ready  chan struct{}

	mu        sync.Mutex
	items     []integrity.Anomaly
	dropped   int
	coalesced int
}

// NewQueue creates a queue holding at most size anomalies.
func NewQueue(size int, window time.Duration) *Queue {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Queue{
		size:   size,
		window: window,
		ready:  make(chan struct{}, 1),
	}
}

// Push enqueues the anomaly.
func (q *Queue) Push(a integrity.Anomaly) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.items {
		p := &q.items[i]
		if p.Type != a.Type || absDuration(a.Timestamp.Sub(p.Timestamp)) >= q.window {
			continue
		}
		data := maps.Clone(p.Data)
		if data == nil {
			data = map[string]any{}
		}
		n, _ := data[occurrencesKey].(int)
		data[occurrencesKey] = max(n, 1) + 1
		p.Data = data
		q.coalesced++
		return
	}

	if len(q.items) >= q.size {
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, a)

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Pop removes the oldest pending anomaly.
func (q *Queue) Pop() (integrity.Anomaly, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return integrity.Anomaly{}, false
	}
	a := q.items[0]
	q.items = q.items[1:]
	return a, true
}

// Len is the number of pending anomalies.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Ready is signalled after a push.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Stats reports how many anomalies were coalesced and dropped so far.
func (q *Queue) Stats() (coalesced, dropped int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.coalesced, q.dropped
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
