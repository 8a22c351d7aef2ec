package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-guard/internal/notify"
	"github.com/spigell/interview-guard/internal/store"
)

const sampleConfig = `
monitor:
  tick: 3s
  warmup: 1s
  thresholds:
    person-switch: 0.7
biometric:
  url: http://localhost:5000
  face-timeout: 4s
store:
  driver: memory
enrollments:
  candidate-1:
    face: faces/candidate-1.jpg
    voice: voices/candidate-1.wav
notify:
  log: false
  kafka:
    brokers: ["localhost:9092"]
    topic: interview-anomalies
reviewer:
  enabled: false
`

func loadSampleConfig(t *testing.T) *Config {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.SetConfigType("yaml")
	if err := viper.ReadConfig(strings.NewReader(sampleConfig)); err != nil {
		t.Fatalf("read config: %v", err)
	}

	cfg, err := getConfig()
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	return cfg
}

func TestGetConfig(t *testing.T) {
	cfg := loadSampleConfig(t)

	if cfg.Monitor.Tick != 3*time.Second || cfg.Monitor.Warmup != time.Second {
		t.Fatalf("unexpected monitor config: %+v", cfg.Monitor)
	}
	if cfg.Monitor.Thresholds.PersonSwitch != 0.7 {
		t.Fatalf("unexpected thresholds: %+v", cfg.Monitor.Thresholds)
	}
	if cfg.Biometric == nil || cfg.Biometric.FaceTimeout != 4*time.Second {
		t.Fatalf("unexpected biometric config: %+v", cfg.Biometric)
	}

	enrollment, ok := cfg.Enrollments["candidate-1"]
	if !ok || enrollment.Face != "faces/candidate-1.jpg" || enrollment.Voice != "voices/candidate-1.wav" {
		t.Fatalf("unexpected enrollments: %+v", cfg.Enrollments)
	}

	if cfg.Notify == nil || cfg.Notify.Log || cfg.Notify.Kafka == nil || cfg.Notify.Kafka.Topic != "interview-anomalies" {
		t.Fatalf("unexpected notify config: %+v", cfg.Notify)
	}
}

func TestNewStoresFromConfig(t *testing.T) {
	cfg := loadSampleConfig(t)

	applications, enrollments, err := newStores(cfg)
	if err != nil {
		t.Fatalf("new stores: %v", err)
	}
	defer applications.Close()

	if _, ok := applications.(*store.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", applications)
	}

	face, err := enrollments.GetReferenceFace(t.Context(), "candidate-1")
	if err != nil || face != "faces/candidate-1.jpg" {
		t.Fatalf("unexpected face reference %q, %v", face, err)
	}
}

func TestNewStoresRejectsIncompleteBackends(t *testing.T) {
	_, _, err := newStores(&Config{Store: &StoreConfig{Driver: "redis"}})
	if err == nil {
		t.Fatal("expected error for redis without address")
	}

	_, _, err = newStores(&Config{Store: &StoreConfig{Driver: "cassandra"}})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestNewNotifier(t *testing.T) {
	sink, closers, err := newNotifier(&NotifyConfig{Log: false}, zap.NewNop())
	if err != nil || sink != nil || len(closers) != 0 {
		t.Fatalf("expected no sinks, got %v %v %v", sink, closers, err)
	}

	sink, _, err = newNotifier(nil, zap.NewNop())
	if err != nil || sink == nil {
		t.Fatalf("expected default log sink, got %v %v", sink, err)
	}

	if _, _, err := newNotifier(&NotifyConfig{Kafka: &notify.KafkaConfig{Topic: "t"}}, zap.NewNop()); err == nil {
		t.Fatal("expected error for kafka without brokers")
	}
}

func TestNewReviewerDisabled(t *testing.T) {
	r, err := newReviewer(t.Context(), &ReviewerConfig{Enabled: false}, zap.NewNop())
	if err != nil || r != nil {
		t.Fatalf("expected no reviewer, got %v %v", r, err)
	}

	if _, err := newReviewer(t.Context(), &ReviewerConfig{Enabled: true, Provider: "openai"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestEnrollmentsWithUppercaseIDs(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.SetConfigType("yaml")
	err := viper.ReadConfig(strings.NewReader(`
enrollments:
  Alice:
    face: faces/alice.jpg
`))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}

	cfg, err := getConfig()
	if err != nil {
		t.Fatalf("get config: %v", err)
	}

	_, enrollments, err := newStores(cfg)
	if err != nil {
		t.Fatalf("new stores: %v", err)
	}

	face, err := enrollments.GetReferenceFace(t.Context(), "Alice")
	if err != nil || face != "faces/alice.jpg" {
		t.Fatalf("expected Alice to be enrolled, got %q, %v", face, err)
	}
}
