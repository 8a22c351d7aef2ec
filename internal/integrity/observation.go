package integrity

import (
	"math"
	"time"
)

// Observation is one sampled instant of a single modality.
// The set of implementations is closed: FaceObservation, VoiceObservation,
// VoiceProfileObservation, EnvironmentObservation and AppearanceObservation.
type Observation interface {
	Modality() Modality
	ObservedAt() time.Time
	observation()
}

// FaceObservation is a normalized face comparison answer.
type FaceObservation struct {
	At         time.Time
	Similarity float64
	Confidence string
	Verified   bool
	FaceCount  int
	// Err is set when the backend could not produce an answer.
	Err error
}

// VoiceObservation is a normalized voice comparison answer.
type VoiceObservation struct {
	At            time.Time
	EnsembleScore float64
	Confidence    string
	Verified      bool
	Err           error
}

// VoiceProfile is the frequency-domain summary of an audio sample.
type VoiceProfile struct {
	AverageVolume    float64 `json:"averageVolume"`
	SpectralCentroid float64 `json:"spectralCentroid"`
}

// IsZero reports whether the profile carries no signal.
func (p VoiceProfile) IsZero() bool {
	return p.AverageVolume == 0 && p.SpectralCentroid == 0
}

// VoiceProfileObservation compares the current profile with the first one seen.
type VoiceProfileObservation struct {
	At        time.Time
	Current   VoiceProfile
	Reference VoiceProfile
}

// EnvironmentObservation carries the mean RGB delta between consecutive frames.
type EnvironmentObservation struct {
	At         time.Time
	PixelDelta float64
}

// Color is a mean RGB value in the 0..255 range.
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Distance returns the euclidean distance between two colours.
func (c Color) Distance(o Color) float64 {
	dr, dg, db := c.R-o.R, c.G-o.G, c.B-o.B
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// AppearanceObservation compares the chest-region colour with the first one seen.
type AppearanceObservation struct {
	At        time.Time
	Current   Color
	Reference Color
}

func (o FaceObservation) Modality() Modality         { return ModalityFace }
func (o VoiceObservation) Modality() Modality        { return ModalityVoice }
func (o VoiceProfileObservation) Modality() Modality { return ModalityVoice }
func (o EnvironmentObservation) Modality() Modality  { return ModalityEnvironment }
func (o AppearanceObservation) Modality() Modality   { return ModalityAppearance }

func (o FaceObservation) ObservedAt() time.Time         { return o.At }
func (o VoiceObservation) ObservedAt() time.Time        { return o.At }
func (o VoiceProfileObservation) ObservedAt() time.Time { return o.At }
func (o EnvironmentObservation) ObservedAt() time.Time  { return o.At }
func (o AppearanceObservation) ObservedAt() time.Time   { return o.At }

func (FaceObservation) observation()         {}
func (VoiceObservation) observation()        {}
func (VoiceProfileObservation) observation() {}
func (EnvironmentObservation) observation()  {}
func (AppearanceObservation) observation()   {}

// Passed reports whether a backend observation is a clean pass.
// Heuristic observations never pass.
func Passed(obs Observation) bool {
	switch o := obs.(type) {
	case FaceObservation:
		return o.Err == nil && o.Verified
	case VoiceObservation:
		return o.Err == nil && o.Verified
	default:
		return false
	}
}
