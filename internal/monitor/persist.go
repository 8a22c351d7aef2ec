package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-guard/internal/integrity"
	"github.com/spigell/interview-guard/internal/store"
)

// Persister saves ledger snapshots in the background. Only the newest
// snapshot is kept: a save that fails is not retried on its own, the next
// ingestion schedules a newer snapshot instead.
type Persister struct {
	store   store.ApplicationStore
	userID  string
	jobID   string
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	latest  *integrity.Record
	pending chan struct{}
	saved   int
	failed  int
}

// NewPersister creates a persister for one application.
func NewPersister(st store.ApplicationStore, userID, jobID string, timeout time.Duration, logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{
		store:   st,
		userID:  userID,
		jobID:   jobID,
		timeout: timeout,
		logger:  logger,
		pending: make(chan struct{}, 1),
	}
}

// Schedule replaces the pending snapshot. It never blocks.
func (p *Persister) Schedule(rec integrity.Record) {
	p.mu.Lock()
	p.latest = &rec
	p.mu.Unlock()

	select {
	case p.pending <- struct{}{}:
	default:
	}
}

// Run saves scheduled snapshots until ctx is done.
func (p *Persister) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.pending:
		}

		p.mu.Lock()
		rec := p.latest
		p.latest = nil
		p.mu.Unlock()

		if rec != nil {
			_ = p.save(ctx, *rec)
		}
	}
}

// Flush saves rec synchronously and drops anything still pending.
func (p *Persister) Flush(ctx context.Context, rec integrity.Record) error {
	p.mu.Lock()
	p.latest = nil
	p.mu.Unlock()

	return p.save(ctx, rec)
}

// Stats reports successful and failed saves.
func (p *Persister) Stats() (saved, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saved, p.failed
}

func (p *Persister) save(ctx context.Context, rec integrity.Record) error {
	if p.store == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.store.SaveMonitoringState(ctx, p.userID, p.jobID, rec)

	p.mu.Lock()
	if err != nil {
		p.failed++
	} else {
		p.saved++
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("persist monitoring state", zap.Error(err))
		return err
	}
	p.logger.Debug("monitoring state saved",
		zap.Int("anomalies", rec.Summary.TotalAnomalies),
		zap.Int("score", rec.Summary.OverallSecurityScore),
	)
	return nil
}
