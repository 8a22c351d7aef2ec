package integrity

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestClassifyFace(t *testing.T) {
	t.Parallel()

	c := NewClassifier(Thresholds{})

	tests := []struct {
		name   string
		obs    FaceObservation
		expect AnomalyType
		sev    Severity
	}{
		{
			name: "matching face",
			obs:  FaceObservation{Similarity: 0.95, Confidence: ConfidenceHigh, Verified: true, FaceCount: 1},
		},
		{
			name:   "backend error",
			obs:    FaceObservation{Confidence: ConfidenceError, Err: ErrTransientBackend},
			expect: AnomalyFaceVerificationFail,
			sev:    SeverityHigh,
		},
		{
			name:   "two faces",
			obs:    FaceObservation{Similarity: 0.9, Confidence: ConfidenceHigh, Verified: true, FaceCount: 2},
			expect: AnomalyMultipleFaces,
			sev:    SeverityHigh,
		},
		{
			name:   "different person",
			obs:    FaceObservation{Similarity: 0.4, Confidence: ConfidenceMedium, FaceCount: 1},
			expect: AnomalyPersonSwitch,
			sev:    SeverityHigh,
		},
		{
			name:   "no face in frame",
			obs:    FaceObservation{Similarity: 0, Confidence: ConfidenceLow, FaceCount: 0},
			expect: AnomalyFaceVerificationFail,
			sev:    SeverityHigh,
		},
		{
			name:   "low confidence",
			obs:    FaceObservation{Similarity: 0.7, Confidence: "low", Verified: true, FaceCount: 1},
			expect: AnomalyFaceQualityLow,
			sev:    SeverityMedium,
		},
		{
			name: "rejected above threshold",
			obs:  FaceObservation{Similarity: 0.65, Confidence: ConfidenceMedium, FaceCount: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.obs.At = testNow
			got := c.ClassifyFace(tt.obs)
			if tt.expect == "" {
				if got != nil {
					t.Fatalf("expected no anomaly, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected %s, got nil", tt.expect)
			}
			if got.Type != tt.expect || got.Severity != tt.sev {
				t.Fatalf("expected %s/%s, got %s/%s", tt.expect, tt.sev, got.Type, got.Severity)
			}
			if got.Modality != ModalityFace {
				t.Fatalf("unexpected modality %s", got.Modality)
			}
			if !got.Timestamp.Equal(testNow) {
				t.Fatalf("expected detection timestamp to be kept")
			}
		})
	}
}

func TestClassifyVoice(t *testing.T) {
	t.Parallel()

	c := NewClassifier(Thresholds{})

	if got := c.ClassifyVoice(VoiceObservation{EnsembleScore: 0.95, Verified: true}); got != nil {
		t.Fatalf("expected no anomaly, got %+v", got)
	}

	if got := c.ClassifyVoice(VoiceObservation{EnsembleScore: 0.92}); got != nil {
		t.Fatalf("expected unverified score above threshold to pass, got %+v", got)
	}

	got := c.ClassifyVoice(VoiceObservation{EnsembleScore: 0.5})
	if got == nil || got.Type != AnomalyVoiceVerificationFail || got.Source != SourceBackend {
		t.Fatalf("expected backend voice failure, got %+v", got)
	}

	got = c.ClassifyVoice(VoiceObservation{Err: errors.New("connection refused")})
	if got == nil || got.Type != AnomalyVoiceVerificationFail {
		t.Fatalf("expected error to classify as failure, got %+v", got)
	}
	if got.Data["error"] != "connection refused" {
		t.Fatalf("expected error evidence, got %v", got.Data["error"])
	}
}

func TestClassifyVoiceProfile(t *testing.T) {
	t.Parallel()

	c := NewClassifier(Thresholds{})
	ref := VoiceProfile{AverageVolume: 80, SpectralCentroid: 40}

	tests := []struct {
		name    string
		current VoiceProfile
		expect  AnomalyType
	}{
		{name: "stable", current: VoiceProfile{AverageVolume: 90, SpectralCentroid: 45}},
		{name: "silence is ignored", current: VoiceProfile{}},
		{name: "louder", current: VoiceProfile{AverageVolume: 140, SpectralCentroid: 45}, expect: AnomalyVolumeChange},
		{name: "different voice", current: VoiceProfile{AverageVolume: 85, SpectralCentroid: 70}, expect: AnomalyVoiceCharacteristics},
		{name: "centroid wins", current: VoiceProfile{AverageVolume: 200, SpectralCentroid: 90}, expect: AnomalyVoiceCharacteristics},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := c.ClassifyVoiceProfile(VoiceProfileObservation{At: testNow, Current: tt.current, Reference: ref})
			if tt.expect == "" {
				if got != nil {
					t.Fatalf("expected no anomaly, got %+v", got)
				}
				return
			}
			if got == nil || got.Type != tt.expect {
				t.Fatalf("expected %s, got %+v", tt.expect, got)
			}
			if got.Source != SourceHeuristic {
				t.Fatalf("expected heuristic source, got %s", got.Source)
			}
		})
	}
}

func TestEmptyFrameIsNotIdentityFraud(t *testing.T) {
	t.Parallel()

	c := NewClassifier(Thresholds{})
	a := c.ClassifyFace(FaceObservation{At: testNow, Similarity: 0, Confidence: ConfidenceLow, FaceCount: 0})
	if a == nil || a.Type != AnomalyFaceVerificationFail {
		t.Fatalf("expected face verification failure, got %+v", a)
	}

	snap, err := NewLedger(SessionInfo{SessionID: "s1", StartedAt: testNow}).Ingest(*a)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if snap.Alerts.IdentityFraudSuspected || snap.Counters.PersonSwitches != 0 {
		t.Fatalf("candidate out of frame must not be identity fraud: %+v", snap.Alerts)
	}
	if snap.Integrity != IntegrityQuestionable || snap.Score != 75 {
		t.Fatalf("expected QUESTIONABLE/75, got %s/%d", snap.Integrity, snap.Score)
	}
}

func TestLowConfidenceSurvivesRecentPass(t *testing.T) {
	t.Parallel()

	c := NewClassifier(Thresholds{})
	s := NewSuppressor(0)

	prev := FaceObservation{At: testNow, Similarity: 0.7, Confidence: ConfidenceLow, Verified: true, FaceCount: 1}
	s.Observe(prev)

	next := FaceObservation{At: testNow.Add(2 * time.Second), Similarity: 0.7, Confidence: ConfidenceLow, Verified: true, FaceCount: 1}
	got := c.ClassifyFace(next)
	if got == nil || got.Type != AnomalyFaceQualityLow {
		t.Fatalf("expected face_quality_low, got %+v", got)
	}
	if got.Source != SourceBackend {
		t.Fatalf("expected backend source, got %s", got.Source)
	}
	if s.Suppressed(got) {
		t.Fatalf("a backend verdict must not be suppressed by the previous pass")
	}
}

func TestClassifyEnvironmentAndAppearance(t *testing.T) {
	t.Parallel()

	c := NewClassifier(Thresholds{})

	if got := c.ClassifyEnvironment(EnvironmentObservation{PixelDelta: 12}); got != nil {
		t.Fatalf("expected small delta to pass")
	}
	got := c.Classify(EnvironmentObservation{At: testNow, PixelDelta: 45})
	if got == nil || got.Type != AnomalyEnvironmentChange || got.Severity != SeverityMedium {
		t.Fatalf("expected environment change, got %+v", got)
	}

	ref := Color{R: 20, G: 30, B: 120}
	if got := c.ClassifyAppearance(AppearanceObservation{Current: Color{R: 25, G: 35, B: 110}, Reference: ref}); got != nil {
		t.Fatalf("expected similar colour to pass")
	}
	got = c.Classify(AppearanceObservation{At: testNow, Current: Color{R: 200, G: 40, B: 40}, Reference: ref})
	if got == nil || got.Type != AnomalyClothingChange || got.Severity != SeverityHigh {
		t.Fatalf("expected clothing change, got %+v", got)
	}
}

func TestThresholdOverrides(t *testing.T) {
	t.Parallel()

	c := NewClassifier(Thresholds{EnvironmentDelta: 60})
	if got := c.ClassifyEnvironment(EnvironmentObservation{PixelDelta: 45}); got != nil {
		t.Fatalf("expected custom threshold to be honoured")
	}
}

func TestSuppressor(t *testing.T) {
	t.Parallel()

	s := NewSuppressor(0)
	s.Observe(FaceObservation{At: testNow, Verified: true, Similarity: 0.9})

	heuristic := &Anomaly{Timestamp: testNow.Add(3 * time.Second), Modality: ModalityFace, Source: SourceHeuristic}
	if !s.Suppressed(heuristic) {
		t.Fatalf("expected heuristic face anomaly to be suppressed")
	}

	late := &Anomaly{Timestamp: testNow.Add(6 * time.Second), Modality: ModalityFace, Source: SourceHeuristic}
	if s.Suppressed(late) {
		t.Fatalf("expected anomaly outside the window to pass")
	}

	backend := &Anomaly{Timestamp: testNow.Add(time.Second), Modality: ModalityFace, Source: SourceBackend}
	if s.Suppressed(backend) {
		t.Fatalf("backend anomalies must never be suppressed")
	}

	voice := &Anomaly{Timestamp: testNow.Add(time.Second), Modality: ModalityVoice, Source: SourceHeuristic}
	if s.Suppressed(voice) {
		t.Fatalf("expected other modality to pass")
	}

	s.Observe(FaceObservation{At: testNow.Add(10 * time.Second), Err: ErrTransientBackend})
	if s.Suppressed(&Anomaly{Timestamp: testNow.Add(11 * time.Second), Modality: ModalityFace, Source: SourceHeuristic}) {
		t.Fatalf("failed verification must not count as a pass")
	}
}
