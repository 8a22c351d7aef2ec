package integrity

import (
	"sync"
	"time"
)

// DefaultSuppressionWindow is how long a passing backend answer silences
// heuristic anomalies of the same modality.
const DefaultSuppressionWindow = 5 * time.Second

// Suppressor drops heuristic anomalies that contradict a recent passing
// backend verification, so one instant is not counted twice by two
// detection paths.
type Suppressor struct {
	window time.Duration

	mu       sync.Mutex
	lastPass map[Modality]time.Time
}

// NewSuppressor creates a suppressor. A non-positive window uses the default.
func NewSuppressor(window time.Duration) *Suppressor {
	if window <= 0 {
		window = DefaultSuppressionWindow
	}
	return &Suppressor{
		window:   window,
		lastPass: make(map[Modality]time.Time),
	}
}

// Observe records passing backend observations.
func (s *Suppressor) Observe(obs Observation) {
	if !Passed(obs) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	at := obs.ObservedAt()
	if last, ok := s.lastPass[obs.Modality()]; !ok || at.After(last) {
		s.lastPass[obs.Modality()] = at
	}
}

// Suppressed reports whether the anomaly must be dropped.
func (s *Suppressor) Suppressed(a *Anomaly) bool {
	if a == nil || a.Source != SourceHeuristic {
		return false
	}

	s.mu.Lock()
	last, ok := s.lastPass[a.Modality]
	s.mu.Unlock()
	if !ok {
		return false
	}

	delta := a.Timestamp.Sub(last)
	if delta < 0 {
		delta = -delta
	}
	return delta <= s.window
}
