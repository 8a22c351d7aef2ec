package biometric

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-guard/internal/integrity"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.URL = srv.URL
	return New(zap.NewNop(), cfg)
}

func TestVerifyFaceNormalizesQuirks(t *testing.T) {
	t.Parallel()

	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != faceEndpoint {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"verified": "true", "similarity": "87.5", "confidence": "high", "bounding_boxes": [[10, 20, "30", 40], {"x": 1, "y": 2, "w": 3, "h": 4}]}`))
	}, Config{APIKey: "secret"})

	res := client.VerifyFace(context.Background(), FaceRequest{UserID: "u1", ReferenceImage: "ref.jpg", Frame: []byte("jpeg")})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if !res.Verified {
		t.Fatalf("expected verified")
	}
	if res.Similarity != 0.875 {
		t.Fatalf("expected percentage to be normalized, got %v", res.Similarity)
	}
	if res.Confidence != integrity.ConfidenceHigh {
		t.Fatalf("unexpected confidence %q", res.Confidence)
	}
	if res.FaceCount != 2 || len(res.BoundingBoxes) != 2 {
		t.Fatalf("expected two faces, got %d (%v)", res.FaceCount, res.BoundingBoxes)
	}
	if res.BoundingBoxes[0].Width != 30 || res.BoundingBoxes[1].Height != 4 {
		t.Fatalf("unexpected boxes: %+v", res.BoundingBoxes)
	}

	if got["reference_image"] != "ref.jpg" || got["image"] != base64.StdEncoding.EncodeToString([]byte("jpeg")) {
		t.Fatalf("unexpected request payload: %v", got)
	}
}

func TestVerifyFaceScoresAndCounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		similarity float64
		faces      int
	}{
		{name: "fraction just above one is clamped", body: `{"verified": true, "similarity": 1.0000001}`, similarity: 1, faces: 1},
		{name: "percent string", body: `{"verified": true, "similarity": "1.2%"}`, similarity: 0.012, faces: 1},
		{name: "plain percentage", body: `{"verified": true, "similarity": 92}`, similarity: 0.92, faces: 1},
		{name: "empty box list means no face", body: `{"verified": false, "similarity": 0, "bounding_boxes": []}`, similarity: 0, faces: 0},
		{name: "empty faces list", body: `{"verified": false, "similarity": 0, "faces": []}`, similarity: 0, faces: 0},
		{name: "numeric faces is a count", body: `{"verified": true, "similarity": 0.9, "faces": 2}`, similarity: 0.9, faces: 2},
		{name: "face_count wins", body: `{"verified": true, "similarity": 0.9, "bounding_boxes": [], "face_count": 1}`, similarity: 0.9, faces: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(tt.body))
			}, Config{})

			res := client.VerifyFace(context.Background(), FaceRequest{Frame: []byte("jpeg")})
			if res.Err != nil {
				t.Fatalf("unexpected error: %v", res.Err)
			}
			if math.Abs(res.Similarity-tt.similarity) > 1e-9 {
				t.Fatalf("expected similarity %v, got %v", tt.similarity, res.Similarity)
			}
			if res.FaceCount != tt.faces {
				t.Fatalf("expected %d faces, got %d", tt.faces, res.FaceCount)
			}
		})
	}
}

func TestVerifyFaceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		target  error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			target: integrity.ErrTransientBackend,
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`<html>oops</html>`))
			},
			target: integrity.ErrTransientBackend,
		},
		{
			name: "missing similarity",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"verified": true}`))
			},
			target: integrity.ErrTransientBackend,
		},
		{
			name: "no face",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error": "no face detected"}`))
			},
			target: integrity.ErrInvalidInput,
		},
		{
			name: "success false",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"success": false, "message": "reference missing", "verified": true, "similarity": 1}`))
			},
			target: integrity.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, tt.handler, Config{})
			res := client.VerifyFace(context.Background(), FaceRequest{Frame: []byte("jpeg")})
			if res.Verified {
				t.Fatalf("failed verification must never pass")
			}
			if res.Confidence != integrity.ConfidenceError {
				t.Fatalf("expected ERROR confidence, got %q", res.Confidence)
			}
			if !errors.Is(res.Err, tt.target) {
				t.Fatalf("expected %v, got %v", tt.target, res.Err)
			}
			if res.Error == "" {
				t.Fatalf("expected error message to be populated")
			}
		})
	}
}

func TestVerifyFaceTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, Config{FaceTimeout: 50 * time.Millisecond})
	defer close(release)

	started := time.Now()
	res := client.VerifyFace(context.Background(), FaceRequest{Frame: []byte("jpeg")})
	if time.Since(started) > 2*time.Second {
		t.Fatalf("verification was not bounded by the timeout")
	}
	if !res.IsTransient() {
		t.Fatalf("expected transient error, got %v", res.Err)
	}
}

func TestVerifyFaceUnreachable(t *testing.T) {
	t.Parallel()

	client := New(zap.NewNop(), Config{URL: "http://127.0.0.1:1"})
	res := client.VerifyFace(context.Background(), FaceRequest{Frame: []byte("jpeg")})
	if !res.IsTransient() || res.Verified {
		t.Fatalf("expected transient failure, got %+v", res)
	}
}

func TestVerifyFaceEmptyFrame(t *testing.T) {
	t.Parallel()

	client := New(zap.NewNop(), Config{URL: "http://127.0.0.1:1"})
	res := client.VerifyFace(context.Background(), FaceRequest{})
	if !errors.Is(res.Err, integrity.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", res.Err)
	}
}

func TestVerifyVoice(t *testing.T) {
	t.Parallel()

	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != voiceEndpoint {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"verified": false, "ensemble_score": 0.42, "confidence": 0.3}`))
	}, Config{})

	res := client.VerifyVoice(context.Background(), VoiceRequest{ReferenceAudio: "ref.wav", Audio: []byte("wav"), ReferenceText: "hello"})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Verified || res.EnsembleScore != 0.42 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Confidence != integrity.ConfidenceLow {
		t.Fatalf("expected numeric confidence to map to LOW, got %q", res.Confidence)
	}
	if got["reference_text"] != "hello" {
		t.Fatalf("expected reference text in request, got %v", got)
	}

	obs := res.VoiceObservation(time.Unix(0, 0))
	if obs.EnsembleScore != 0.42 || obs.Verified {
		t.Fatalf("unexpected observation: %+v", obs)
	}
}
