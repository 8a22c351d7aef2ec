package integrity

import "time"

// Modality identifies the signal an anomaly was detected on.
type Modality string

const (
	ModalityFace        Modality = "face"
	ModalityVoice       Modality = "voice"
	ModalityEnvironment Modality = "environment"
	ModalityAppearance  Modality = "appearance"
)

// Severity of a single anomaly.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AnomalyType is the classified kind of deviation.
type AnomalyType string

const (
	AnomalyPersonSwitch          AnomalyType = "person_switch"
	AnomalyMultipleFaces         AnomalyType = "multiple_faces_detected"
	AnomalyFaceQualityLow        AnomalyType = "face_quality_low"
	AnomalyFaceVerificationFail  AnomalyType = "flask_face_verification_failed"
	AnomalyVoiceVerificationFail AnomalyType = "flask_voice_verification_failed"
	AnomalyVoiceCharacteristics  AnomalyType = "voice_characteristics_change"
	AnomalyVolumeChange          AnomalyType = "volume_change"
	AnomalyEnvironmentChange     AnomalyType = "environment_change"
	AnomalyClothingChange        AnomalyType = "clothing_change"
)

// Source tells which detection path produced an anomaly.
type Source string

const (
	// SourceBackend marks anomalies derived from a biometric backend answer.
	SourceBackend Source = "backend"
	// SourceHeuristic marks anomalies derived from local signal heuristics.
	SourceHeuristic Source = "heuristic"
)

// Anomaly is an immutable detected deviation.
type Anomaly struct {
	Timestamp time.Time      `json:"timestamp"`
	Modality  Modality       `json:"modality"`
	Type      AnomalyType    `json:"type"`
	Severity  Severity       `json:"severity"`
	Source    Source         `json:"source"`
	Details   string         `json:"details"`
	Data      map[string]any `json:"data,omitempty"`
}

// RedFlagType is the human-facing escalation kind.
type RedFlagType string

const (
	RedFlagIdentityFraud       RedFlagType = "IDENTITY_FRAUD_SUSPECTED"
	RedFlagFaceVerification    RedFlagType = "FACE_VERIFICATION_FAILED"
	RedFlagVoiceVerification   RedFlagType = "VOICE_VERIFICATION_FAILED"
	RedFlagVoicePatternAnomaly RedFlagType = "VOICE_PATTERN_ANOMALY"
	RedFlagEnvironmentChange   RedFlagType = "ENVIRONMENT_CHANGE"
	RedFlagAppearanceChange    RedFlagType = "APPEARANCE_CHANGE"
)

// FlagSeverity is the upper-case severity used on red flags.
type FlagSeverity string

const (
	FlagLow      FlagSeverity = "LOW"
	FlagMedium   FlagSeverity = "MEDIUM"
	FlagHigh     FlagSeverity = "HIGH"
	FlagCritical FlagSeverity = "CRITICAL"
)

// RedFlag is an append-only escalation derived from an anomaly.
type RedFlag struct {
	Type      RedFlagType    `json:"type"`
	Details   string         `json:"details"`
	Severity  FlagSeverity   `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// RiskLevel is the coarse risk classification of a session.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Integrity is the overall verdict presented to the reviewer.
type Integrity string

const (
	IntegrityVerified     Integrity = "VERIFIED"
	IntegrityQuestionable Integrity = "QUESTIONABLE"
	IntegrityCompromised  Integrity = "COMPROMISED"
)

// Confidence labels reported by the verification backend.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
	ConfidenceError  = "ERROR"
)
