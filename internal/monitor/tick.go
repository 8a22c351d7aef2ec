package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-guard/internal/biometric"
	"github.com/spigell/interview-guard/internal/integrity"
	"github.com/spigell/interview-guard/internal/media"
	"github.com/spigell/interview-guard/internal/notify"
)

// tick runs one monitoring cycle. Capture failures and unusable frames skip
// the cycle. Only media.ErrPermissionRevoked is returned, to end the session.
func (s *Session) tick(ctx context.Context) error {
	s.mu.Lock()
	state, openedAt := s.state, s.openedAt
	s.mu.Unlock()

	if state != StateCapturingBaseline && state != StateMonitoring {
		return nil
	}

	frame, err := s.deps.Source.Frame(ctx)
	if errors.Is(err, media.ErrPermissionRevoked) {
		return err
	}
	if err != nil {
		s.logger.Warn("capture frame, skipping tick", zap.Error(err))
		return nil
	}
	if !frame.Stable() {
		s.logger.Warn("unusable frame, skipping tick",
			zap.Error(fmt.Errorf("%w: empty or zero-size frame", integrity.ErrInvalidInput)))
		return nil
	}

	audio, err := s.deps.Source.Audio(ctx, s.cfg.Tick)
	if errors.Is(err, media.ErrPermissionRevoked) {
		return err
	}
	if err != nil {
		s.logger.Debug("capture audio", zap.Error(err))
		audio = nil
	}

	now := s.deps.Clock.Now()
	// Outstanding calls are allowed to finish after Stop.
	callCtx := context.WithoutCancel(ctx)

	if state == StateCapturingBaseline {
		s.tryBaseline(callCtx, frame, audio, now.Sub(openedAt))
		return nil
	}

	s.observeFrame(frame, now)
	s.observeAudio(callCtx, audio, now)
	s.verifyFace(callCtx, frame)
	return nil
}

func (s *Session) tryBaseline(ctx context.Context, frame *media.Frame, audio *media.AudioChunk, elapsed time.Duration) {
	if elapsed < s.cfg.Warmup {
		return
	}
	if !s.face.TryAcquire(1) {
		s.logger.Debug("baseline attempt in flight, skipping")
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.face.Release(1)

		if err := s.captureBaseline(ctx, frame, audio); err != nil {
			s.logger.Info("baseline not captured, retrying next tick", zap.Error(err))
		}
	}()
}

// observeFrame runs the environment and appearance heuristics.
func (s *Session) observeFrame(frame *media.Frame, now time.Time) {
	thumb := media.Downsample(frame.Image, media.ThumbnailWidth, media.ThumbnailHeight)
	chest := media.RegionMean(frame.Image, media.ChestRegion)

	s.mu.Lock()
	prev := s.prevThumb
	s.prevThumb = thumb
	ref := s.chest
	if ref == nil {
		s.chest = &chest
	}
	s.mu.Unlock()

	if prev != nil {
		delta, err := media.PixelDelta(prev, thumb)
		if err != nil {
			s.logger.Debug("pixel delta", zap.Error(err))
		} else {
			s.emit(s.classifier.ClassifyEnvironment(integrity.EnvironmentObservation{At: now, PixelDelta: delta}))
		}
	}

	if ref != nil {
		s.emit(s.classifier.ClassifyAppearance(integrity.AppearanceObservation{At: now, Current: chest, Reference: *ref}))
	}
}

// observeAudio compares the spectral profile with the first one seen and
// feeds the voice segment chunker.
func (s *Session) observeAudio(ctx context.Context, audio *media.AudioChunk, now time.Time) {
	if audio == nil {
		return
	}

	if profile := media.SpectralProfile(audio); !profile.IsZero() {
		s.mu.Lock()
		ref := s.microVoice
		if ref.IsZero() {
			s.microVoice = profile
		}
		s.mu.Unlock()

		if !ref.IsZero() {
			s.emit(s.classifier.ClassifyVoiceProfile(integrity.VoiceProfileObservation{At: now, Current: profile, Reference: ref}))
		}
	}

	segment := s.chunker.Add(audio)
	if segment == nil || s.voiceRef == "" {
		return
	}
	if !s.voice.TryAcquire(1) {
		s.logger.Debug("voice verification in flight, skipping segment")
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.voice.Release(1)

		res := s.deps.Verifier.VerifyVoice(ctx, biometric.VoiceRequest{
			UserID:         s.info.UserID,
			ReferenceAudio: s.voiceRef,
			Audio:          segment.WAV(),
			ReferenceText:  s.cfg.ReferenceText,
		})
		s.logUnavailable(integrity.ModalityVoice, res)
		s.handle(res.VoiceObservation(s.deps.Clock.Now()))
	}()
}

func (s *Session) verifyFace(ctx context.Context, frame *media.Frame) {
	if !s.face.TryAcquire(1) {
		s.logger.Debug("face verification in flight, skipping tick")
		return
	}

	encoded, err := frame.JPEG()
	if err != nil {
		s.face.Release(1)
		s.logger.Warn("encode frame", zap.Error(err))
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.face.Release(1)

		res := s.deps.Verifier.VerifyFace(ctx, biometric.FaceRequest{
			UserID:         s.info.UserID,
			ReferenceImage: s.faceRef,
			Frame:          encoded,
		})
		s.logUnavailable(integrity.ModalityFace, res)
		s.handle(res.FaceObservation(s.deps.Clock.Now()))
	}()
}

// logUnavailable notes a backend outage. The result is still classified as a
// failed verification.
func (s *Session) logUnavailable(m integrity.Modality, res biometric.Result) {
	if res.IsTransient() {
		s.logger.Warn("biometric backend unavailable, retrying next cycle",
			zap.String("modality", string(m)), zap.Error(res.Err))
	}
}

// handle classifies a backend answer. Answers arriving after Stop are dropped.
func (s *Session) handle(obs integrity.Observation) {
	if s.stopped() {
		s.logger.Debug("discarding verification result after stop")
		return
	}

	s.emit(s.classifier.Classify(obs))
	s.suppressor.Observe(obs)
}

func (s *Session) emit(a *integrity.Anomaly) {
	if a == nil || s.stopped() {
		return
	}
	if s.suppressor.Suppressed(a) {
		s.logger.Debug("heuristic anomaly suppressed by recent verification", zap.String("type", string(a.Type)))
		return
	}

	s.logger.Info("anomaly detected",
		zap.String("type", string(a.Type)),
		zap.String("severity", string(a.Severity)),
		zap.String("modality", string(a.Modality)),
		zap.String("details", a.Details),
	)
	s.queue.Push(*a)
}

// ingest folds a debounced anomaly into the ledger and reports it.
func (s *Session) ingest(ctx context.Context, a integrity.Anomaly) {
	s.mu.Lock()
	ledger, stopped := s.ledger, s.state == StateStopped
	s.mu.Unlock()

	if stopped || ledger == nil {
		return
	}

	s.apply(ctx, ledger, a)
}

// apply ingests one anomaly, schedules a save and reports it.
func (s *Session) apply(ctx context.Context, ledger *integrity.Ledger, a integrity.Anomaly) {
	snap, err := ledger.Ingest(a)
	if err != nil {
		s.logger.Debug("ingest anomaly", zap.Error(err))
		return
	}

	rec := snap.Record()
	s.persister.Schedule(rec)

	if s.deps.Notifier == nil {
		return
	}
	report := notify.Report{SessionID: s.info.SessionID, Record: rec, Anomalies: []integrity.Anomaly{a}}
	if err := s.deps.Notifier.Notify(ctx, report); err != nil {
		s.logger.Warn("notify anomaly", zap.Error(err))
	}
}
