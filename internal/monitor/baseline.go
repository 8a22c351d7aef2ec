package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-guard/internal/biometric"
	"github.com/spigell/interview-guard/internal/integrity"
	"github.com/spigell/interview-guard/internal/media"
)

// Baseline holds the reference signals of a session. It is set once and
// never updated; later comparisons are always against it.
type Baseline struct {
	FaceReference  string
	VoiceReference string
	FaceSimilarity float64
	Voice          integrity.VoiceProfile
	Thumbnail      *media.Thumbnail
	CapturedAt     time.Time
}

// captureBaseline verifies the frame against the enrollment image and, when a
// face is confirmed, records the reference signals. The caller holds the face
// slot.
func (s *Session) captureBaseline(ctx context.Context, frame *media.Frame, audio *media.AudioChunk) error {
	encoded, err := frame.JPEG()
	if err != nil {
		return err
	}

	res := s.deps.Verifier.VerifyFace(ctx, biometric.FaceRequest{
		UserID:         s.info.UserID,
		ReferenceImage: s.faceRef,
		Frame:          encoded,
	})
	if res.Err != nil {
		return fmt.Errorf("baseline face verification: %w", res.Err)
	}
	if res.FaceCount < 1 {
		return fmt.Errorf("%w: no face visible", integrity.ErrInvalidInput)
	}

	b := &Baseline{
		FaceReference:  s.faceRef,
		VoiceReference: s.voiceRef,
		FaceSimilarity: res.Similarity,
		Voice:          media.SpectralProfile(audio),
		Thumbnail:      media.Downsample(frame.Image, media.ThumbnailWidth, media.ThumbnailHeight),
		CapturedAt:     s.deps.Clock.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCapturingBaseline || s.baseline != nil {
		return nil
	}
	s.baseline = b
	s.prevThumb = b.Thumbnail
	if !b.Voice.IsZero() {
		s.microVoice = b.Voice
	}
	s.state = StateMonitoring

	s.logger.Info("baseline captured",
		zap.Float64("similarity", b.FaceSimilarity),
		zap.Float64("voice_volume", b.Voice.AverageVolume),
		zap.Float64("voice_centroid", b.Voice.SpectralCentroid),
	)
	return nil
}
