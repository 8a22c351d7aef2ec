package integrity

import (
	"fmt"
	"math"
	"strings"
)

// Thresholds configures the classifier. Zero fields fall back to defaults.
type Thresholds struct {
	PersonSwitch      float64 `mapstructure:"person-switch"`
	VoiceVerification float64 `mapstructure:"voice-verification"`
	VolumeDelta       float64 `mapstructure:"volume-delta"`
	SpectralDelta     float64 `mapstructure:"spectral-delta"`
	EnvironmentDelta  float64 `mapstructure:"environment-delta"`
	ClothingDistance  float64 `mapstructure:"clothing-distance"`
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PersonSwitch:      0.6,
		VoiceVerification: 0.9,
		VolumeDelta:       50,
		SpectralDelta:     20,
		EnvironmentDelta:  30,
		ClothingDistance:  30,
	}
}

// WithDefaults fills unset thresholds.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	if t.PersonSwitch <= 0 {
		t.PersonSwitch = d.PersonSwitch
	}
	if t.VoiceVerification <= 0 {
		t.VoiceVerification = d.VoiceVerification
	}
	if t.VolumeDelta <= 0 {
		t.VolumeDelta = d.VolumeDelta
	}
	if t.SpectralDelta <= 0 {
		t.SpectralDelta = d.SpectralDelta
	}
	if t.EnvironmentDelta <= 0 {
		t.EnvironmentDelta = d.EnvironmentDelta
	}
	if t.ClothingDistance <= 0 {
		t.ClothingDistance = d.ClothingDistance
	}
	return t
}

// Classifier turns observations into anomalies. It holds no state.
type Classifier struct {
	th Thresholds
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(th Thresholds) *Classifier {
	return &Classifier{th: th.WithDefaults()}
}

// Classify dispatches on the observation variant. It returns nil when the
// observation is within bounds.
func (c *Classifier) Classify(obs Observation) *Anomaly {
	switch o := obs.(type) {
	case FaceObservation:
		return c.ClassifyFace(o)
	case VoiceObservation:
		return c.ClassifyVoice(o)
	case VoiceProfileObservation:
		return c.ClassifyVoiceProfile(o)
	case EnvironmentObservation:
		return c.ClassifyEnvironment(o)
	case AppearanceObservation:
		return c.ClassifyAppearance(o)
	default:
		return nil
	}
}

// ClassifyFace checks a face verification answer.
func (c *Classifier) ClassifyFace(o FaceObservation) *Anomaly {
	data := map[string]any{
		"similarity": o.Similarity,
		"confidence": o.Confidence,
		"verified":   o.Verified,
		"faceCount":  o.FaceCount,
	}

	switch {
	case o.Err != nil:
		data["error"] = o.Err.Error()
		return newAnomaly(o, AnomalyFaceVerificationFail, SeverityHigh, SourceBackend, data,
			fmt.Sprintf("face verification failed: %s", o.Err))
	case o.FaceCount > 1:
		return newAnomaly(o, AnomalyMultipleFaces, SeverityHigh, SourceBackend, data,
			fmt.Sprintf("%d faces detected in frame", o.FaceCount))
	case o.FaceCount < 1:
		// Nobody in frame is a failed check, not evidence of another person.
		return newAnomaly(o, AnomalyFaceVerificationFail, SeverityHigh, SourceBackend, data,
			"face verification failed: no face in frame")
	case o.Similarity < c.th.PersonSwitch:
		data["threshold"] = c.th.PersonSwitch
		return newAnomaly(o, AnomalyPersonSwitch, SeverityHigh, SourceBackend, data,
			fmt.Sprintf("face similarity %.2f below %.2f, possible person switch", o.Similarity, c.th.PersonSwitch))
	case strings.EqualFold(o.Confidence, ConfidenceLow):
		return newAnomaly(o, AnomalyFaceQualityLow, SeverityMedium, SourceBackend, data,
			"face match confidence is low")
	}

	return nil
}

// ClassifyVoice checks a voice verification answer.
func (c *Classifier) ClassifyVoice(o VoiceObservation) *Anomaly {
	data := map[string]any{
		"ensembleScore": o.EnsembleScore,
		"confidence":    o.Confidence,
		"verified":      o.Verified,
	}

	if o.Err != nil {
		data["error"] = o.Err.Error()
		return newAnomaly(o, AnomalyVoiceVerificationFail, SeverityHigh, SourceBackend, data,
			fmt.Sprintf("voice verification failed: %s", o.Err))
	}

	if !o.Verified && o.EnsembleScore < c.th.VoiceVerification {
		data["threshold"] = c.th.VoiceVerification
		return newAnomaly(o, AnomalyVoiceVerificationFail, SeverityHigh, SourceBackend, data,
			fmt.Sprintf("voice ensemble score %.2f below %.2f", o.EnsembleScore, c.th.VoiceVerification))
	}

	return nil
}

// ClassifyVoiceProfile compares the spectral profile with the session's first one.
func (c *Classifier) ClassifyVoiceProfile(o VoiceProfileObservation) *Anomaly {
	if o.Current.IsZero() || o.Reference.IsZero() {
		return nil
	}

	volumeDelta := math.Abs(o.Current.AverageVolume - o.Reference.AverageVolume)
	centroidDelta := math.Abs(o.Current.SpectralCentroid - o.Reference.SpectralCentroid)
	data := map[string]any{
		"volume":           o.Current.AverageVolume,
		"baselineVolume":   o.Reference.AverageVolume,
		"volumeDelta":      volumeDelta,
		"spectralCentroid": o.Current.SpectralCentroid,
		"baselineCentroid": o.Reference.SpectralCentroid,
		"centroidDelta":    centroidDelta,
	}

	if centroidDelta > c.th.SpectralDelta {
		return newAnomaly(o, AnomalyVoiceCharacteristics, SeverityHigh, SourceHeuristic, data,
			fmt.Sprintf("spectral centroid moved by %.1f", centroidDelta))
	}
	if volumeDelta > c.th.VolumeDelta {
		return newAnomaly(o, AnomalyVolumeChange, SeverityMedium, SourceHeuristic, data,
			fmt.Sprintf("average volume moved by %.1f", volumeDelta))
	}

	return nil
}

// ClassifyEnvironment checks the delta between consecutive frames.
func (c *Classifier) ClassifyEnvironment(o EnvironmentObservation) *Anomaly {
	if o.PixelDelta <= c.th.EnvironmentDelta {
		return nil
	}

	data := map[string]any{
		"pixelDelta": o.PixelDelta,
		"threshold":  c.th.EnvironmentDelta,
	}
	return newAnomaly(o, AnomalyEnvironmentChange, SeverityMedium, SourceHeuristic, data,
		fmt.Sprintf("background changed, mean pixel delta %.1f", o.PixelDelta))
}

// ClassifyAppearance checks the chest-region colour against the first sample.
func (c *Classifier) ClassifyAppearance(o AppearanceObservation) *Anomaly {
	distance := o.Current.Distance(o.Reference)
	if distance <= c.th.ClothingDistance {
		return nil
	}

	data := map[string]any{
		"colorDistance": distance,
		"current":       o.Current,
		"reference":     o.Reference,
		"threshold":     c.th.ClothingDistance,
	}
	return newAnomaly(o, AnomalyClothingChange, SeverityHigh, SourceHeuristic, data,
		fmt.Sprintf("clothing colour moved by %.1f", distance))
}

func newAnomaly(obs Observation, t AnomalyType, sev Severity, src Source, data map[string]any, details string) *Anomaly {
	return &Anomaly{
		Timestamp: obs.ObservedAt(),
		Modality:  obs.Modality(),
		Type:      t,
		Severity:  sev,
		Source:    src,
		Details:   details,
		Data:      data,
	}
}
