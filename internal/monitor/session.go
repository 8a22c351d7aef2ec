package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/spigell/interview-guard/internal/biometric"
	"github.com/spigell/interview-guard/internal/integrity"
	"github.com/spigell/interview-guard/internal/logger"
	"github.com/spigell/interview-guard/internal/media"
	"github.com/spigell/interview-guard/internal/notify"
	"github.com/spigell/interview-guard/internal/store"
)

// State of a monitoring session.
type State string

const (
	StateIdle              State = "idle"
	StateCapturingBaseline State = "capturing_baseline"
	StateMonitoring        State = "monitoring"
	StateStopped           State = "stopped"
)

// ErrAlreadyStarted is returned by Start on a session that left Idle.
var ErrAlreadyStarted = errors.New("session already started")

// Reviewer writes a short note on a finished record for human reviewers.
type Reviewer interface {
	Review(ctx context.Context, rec integrity.Record) (string, error)
}

// Deps are the collaborators of a session.
type Deps struct {
	Verifier   biometric.Verifier
	Source     media.Source
	Enrollment store.EnrollmentStore
	Store      store.ApplicationStore
	Notifier   notify.Sink
	Reviewer   Reviewer
	Clock      clock.Clock
	Logger     *zap.Logger
}

// Session monitors one interview. All state is owned by the session; sessions
// share nothing.
type Session struct {
	cfg        Config
	deps       Deps
	info       integrity.SessionInfo
	logger     *zap.Logger
	classifier *integrity.Classifier
	suppressor *integrity.Suppressor
	queue      *Queue
	fwd        *forwarder
	persister  *Persister
	chunker    *media.Chunker

	// face and voice bound outstanding backend calls to one per modality.
	face  *semaphore.Weighted
	voice *semaphore.Weighted

	loops    sync.WaitGroup
	inflight sync.WaitGroup
	done     chan struct{}

	mu         sync.Mutex
	state      State
	opening    bool
	openedAt   time.Time
	cancel     context.CancelFunc
	ledger     *integrity.Ledger
	faceRef    string
	voiceRef   string
	baseline   *Baseline
	prevThumb  *media.Thumbnail
	chest      *integrity.Color
	microVoice integrity.VoiceProfile
	final      integrity.Record
	finalErr   error
}

// NewSession creates an idle session.
func NewSession(info integrity.SessionInfo, cfg Config, deps Deps) *Session {
	cfg = cfg.WithDefaults()
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}

	s := &Session{
		cfg:        cfg,
		deps:       deps,
		info:       info,
		logger:     logger.WithSession(deps.Logger, info.SessionID, info.UserID, info.JobID),
		classifier: integrity.NewClassifier(cfg.Thresholds),
		suppressor: integrity.NewSuppressor(cfg.SuppressionWindow),
		queue:      NewQueue(cfg.QueueSize, cfg.Debounce),
		chunker:    media.NewChunker(cfg.VoiceSegment),
		face:       semaphore.NewWeighted(1),
		voice:      semaphore.NewWeighted(1),
		done:       make(chan struct{}),
		state:      StateIdle,
	}
	s.persister = NewPersister(deps.Store, info.UserID, info.JobID, cfg.SaveTimeout, s.logger)
	s.fwd = &forwarder{
		queue:    s.queue,
		debounce: NewDebouncer(cfg.Debounce, deps.Clock),
		clock:    deps.Clock,
		deliver:  s.ingest,
	}
	return s
}

// ID of the session.
func (s *Session) ID() string {
	return s.info.SessionID
}

// Info describes the session.
func (s *Session) Info() integrity.SessionInfo {
	return s.info
}

// State is the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session has stopped and its final record is saved.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Snapshot returns the current ledger record.
func (s *Session) Snapshot() integrity.Record {
	s.mu.Lock()
	ledger := s.ledger
	s.mu.Unlock()

	if ledger == nil {
		return integrity.Record{}
	}
	return ledger.Snapshot().Record()
}

// Start resolves the enrollment, acquires media and starts monitoring. A
// missing enrollment fails with integrity.ErrConfiguration and a denied
// camera or microphone with integrity.ErrInvalidInput.
func (s *Session) Start(ctx context.Context) error {
	loopCtx, err := s.open(ctx)
	if err != nil {
		return err
	}

	s.loops.Add(3)
	go func() {
		defer s.loops.Done()
		s.run(loopCtx)
	}()
	go func() {
		defer s.loops.Done()
		s.fwd.run(loopCtx)
	}()
	go func() {
		defer s.loops.Done()
		s.persister.Run(loopCtx)
	}()

	s.logger.Info("monitoring started", zap.Duration("tick", s.cfg.Tick))
	return nil
}

// open performs everything Start does except launching the loops.
func (s *Session) open(ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	if s.state != StateIdle || s.opening {
		s.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	s.opening = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.opening = false
		s.mu.Unlock()
	}()

	if s.deps.Verifier == nil || s.deps.Source == nil || s.deps.Enrollment == nil {
		return nil, fmt.Errorf("%w: verifier, media source and enrollment store are required", integrity.ErrConfiguration)
	}

	faceRef, err := s.deps.Enrollment.GetReferenceFace(ctx, s.info.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: reference face: %v", integrity.ErrConfiguration, err)
	}
	voiceRef, err := s.deps.Enrollment.GetReferenceVoice(ctx, s.info.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: reference voice: %v", integrity.ErrConfiguration, err)
	}
	if voiceRef == "" {
		s.logger.Warn("no enrolled voice sample, voice verification disabled")
	}

	if err := s.deps.Source.Open(ctx); err != nil {
		if !errors.Is(err, integrity.ErrInvalidInput) {
			err = fmt.Errorf("%w: %v", integrity.ErrInvalidInput, err)
		}
		return nil, err
	}

	if s.info.StartedAt.IsZero() {
		s.info.StartedAt = s.deps.Clock.Now()
	}
	ledger := s.restore(ctx)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		cancel()
		_ = s.deps.Source.Close()
		return nil, ErrAlreadyStarted
	}
	s.faceRef, s.voiceRef = faceRef, voiceRef
	s.ledger = ledger
	s.openedAt = s.deps.Clock.Now()
	s.cancel = cancel
	s.state = StateCapturingBaseline
	s.mu.Unlock()

	s.persister.Schedule(ledger.Snapshot().Record())
	return loopCtx, nil
}

// restore continues the ledger of an earlier connection to the same
// application, so counters never go backwards.
func (s *Session) restore(ctx context.Context) *integrity.Ledger {
	if s.deps.Store == nil {
		return integrity.NewLedger(s.info)
	}

	prior, err := s.deps.Store.LoadMonitoringState(ctx, s.info.UserID, s.info.JobID)
	if err != nil {
		s.logger.Warn("load monitoring state, starting a fresh ledger", zap.Error(err))
		return integrity.NewLedger(s.info)
	}
	if prior == nil {
		return integrity.NewLedger(s.info)
	}

	s.logger.Info("resuming monitoring state",
		zap.String("previous_session", prior.SessionID),
		zap.Int("anomalies", len(prior.Anomalies)),
	)
	return integrity.Restore(*prior, s.info)
}

func (s *Session) run(ctx context.Context) {
	ticker := s.deps.Clock.Ticker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := s.tick(ctx); errors.Is(err, media.ErrPermissionRevoked) {
			s.logger.Warn("media permission revoked, stopping session")
			go func() {
				if _, err := s.Stop(context.Background()); err != nil {
					s.logger.Error("stop after revoked permission", zap.Error(err))
				}
			}()
			return
		}
	}
}

// Stop ends the session. Loops are cancelled, media is released and anomalies
// still waiting for the debounce window are folded into the ledger.
// Verification calls still in flight are left to finish but their results are
// discarded. The final record is saved synchronously, then saved again with
// the reviewer note if one arrives in time. Stop is idempotent.
func (s *Session) Stop(ctx context.Context) (integrity.Record, error) {
	s.mu.Lock()
	switch s.state {
	case StateStopped:
		s.mu.Unlock()
		select {
		case <-s.done:
			return s.final, s.finalErr
		case <-ctx.Done():
			return integrity.Record{}, ctx.Err()
		}
	case StateIdle:
		s.state = StateStopped
		s.mu.Unlock()
		close(s.done)
		return integrity.Record{}, nil
	}
	s.state = StateStopped
	cancel := s.cancel
	ledger := s.ledger
	s.mu.Unlock()

	cancel()
	s.loops.Wait()

	if err := s.deps.Source.Close(); err != nil {
		s.logger.Warn("release media", zap.Error(err))
	}

	s.drain(ctx, ledger)

	rec := ledger.Close(s.deps.Clock.Now()).Record()
	if coalesced, dropped := s.queue.Stats(); coalesced+dropped > 0 {
		s.logger.Info("anomaly queue summary",
			zap.Int("coalesced", coalesced),
			zap.Int("dropped", dropped),
		)
	}

	// The ended record is saved before the reviewer is asked.
	saveCtx := context.WithoutCancel(ctx)
	err := s.persister.Flush(saveCtx, rec)

	if note := s.review(saveCtx, rec); note != "" {
		rec.ReviewerNote = note
		if ferr := s.persister.Flush(saveCtx, rec); err == nil {
			err = ferr
		}
	}

	saved, failed := s.persister.Stats()
	s.logger.Debug("persistence summary", zap.Int("saved", saved), zap.Int("failed", failed))

	s.mu.Lock()
	s.final, s.finalErr = rec, err
	s.mu.Unlock()
	close(s.done)

	s.logger.Info("monitoring stopped",
		zap.Int("score", rec.Summary.OverallSecurityScore),
		zap.String("risk", string(rec.Summary.RiskLevel)),
		zap.String("integrity", string(rec.Summary.InterviewIntegrity)),
	)
	return rec, err
}

func (s *Session) stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateStopped
}

// drain folds anomalies still queued at Stop into the ledger, ignoring the
// debounce window. The caller has already stopped the forwarder.
func (s *Session) drain(ctx context.Context, ledger *integrity.Ledger) {
	n := 0
	for {
		a, ok := s.queue.Pop()
		if !ok {
			break
		}
		s.apply(ctx, ledger, a)
		n++
	}
	if n > 0 {
		s.logger.Info("queued anomalies folded in at stop", zap.Int("count", n))
	}
}

// review asks the reviewer for a note within cfg.ReviewTimeout. It returns ""
// when there is no reviewer or it fails.
func (s *Session) review(ctx context.Context, rec integrity.Record) string {
	if s.deps.Reviewer == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReviewTimeout)
	defer cancel()

	note, err := s.deps.Reviewer.Review(ctx, rec)
	if err != nil {
		s.logger.Warn("reviewer note", zap.Error(err))
		return ""
	}
	return note
}
