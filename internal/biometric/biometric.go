package biometric

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-guard/internal/integrity"
)

const (
	defaultFaceTimeout  = 5 * time.Second
	defaultVoiceTimeout = 60 * time.Second
	userAgent           = "spigell/interview-guard"
	faceEndpoint        = "/verify-face"
	voiceEndpoint       = "/verify-voice"
)

// BoundingBox is a detected face rectangle in frame pixels.
type BoundingBox struct {
	X      float64 `mapstructure:"x" json:"x"`
	Y      float64 `mapstructure:"y" json:"y"`
	Width  float64 `mapstructure:"width" json:"width"`
	Height float64 `mapstructure:"height" json:"height"`
}

// Result is a normalized verification answer. On any failure Verified is
// false, Confidence is ERROR and Err is set.
type Result struct {
	Verified      bool
	Similarity    float64
	EnsembleScore float64
	Confidence    string
	FaceCount     int
	BoundingBoxes []BoundingBox
	Error         string
	Err           error
}

// FaceRequest asks the backend to compare a frame with the enrolled image.
type FaceRequest struct {
	UserID         string
	ReferenceImage string
	Frame          []byte
}

// VoiceRequest asks the backend to compare an audio chunk with the enrolled voice.
type VoiceRequest struct {
	UserID         string
	ReferenceAudio string
	Audio          []byte
	ReferenceText  string
}

// Verifier is the contract the session monitor depends on.
type Verifier interface {
	VerifyFace(ctx context.Context, req FaceRequest) Result
	VerifyVoice(ctx context.Context, req VoiceRequest) Result
}

// Config describes how to reach the biometric backend.
type Config struct {
	URL          string
	APIKey       string
	FaceTimeout  time.Duration
	VoiceTimeout time.Duration
}

// Client talks to the biometric verification backend over HTTP.
type Client struct {
	logger       *zap.Logger
	apiKey       string
	faceTimeout  time.Duration
	voiceTimeout time.Duration
	HTTPClient   *http.Client
	UserAgent    string
	APIURL       string
}

// New creates a backend client. Unset timeouts fall back to 5s for face and
// 60s for voice.
func New(logger *zap.Logger, cfg Config) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	face := cfg.FaceTimeout
	if face <= 0 {
		face = defaultFaceTimeout
	}
	voice := cfg.VoiceTimeout
	if voice <= 0 {
		voice = defaultVoiceTimeout
	}

	return &Client{
		logger:       logger,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		faceTimeout:  face,
		voiceTimeout: voice,
		// Per-call deadlines come from the context; this is only a backstop.
		HTTPClient: &http.Client{Timeout: voice + 5*time.Second},
		UserAgent:  userAgent,
		APIURL:     strings.TrimRight(cfg.URL, "/"),
	}
}

// FaceObservation converts a face result into a classifier observation.
func (r Result) FaceObservation(at time.Time) integrity.FaceObservation {
	return integrity.FaceObservation{
		At:         at,
		Similarity: r.Similarity,
		Confidence: r.Confidence,
		Verified:   r.Verified,
		FaceCount:  r.FaceCount,
		Err:        r.Err,
	}
}

// VoiceObservation converts a voice result into a classifier observation.
func (r Result) VoiceObservation(at time.Time) integrity.VoiceObservation {
	return integrity.VoiceObservation{
		At:            at,
		EnsembleScore: r.EnsembleScore,
		Confidence:    r.Confidence,
		Verified:      r.Verified,
		Err:           r.Err,
	}
}

func failed(err error) Result {
	return Result{
		Verified:   false,
		Confidence: integrity.ConfidenceError,
		Error:      err.Error(),
		Err:        err,
	}
}
