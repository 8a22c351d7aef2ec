package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrNoBrokers is returned when a kafka sink is configured without brokers.
var ErrNoBrokers = errors.New("kafka brokers are not configured")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig describes the anomaly topic.
type KafkaConfig struct {
	Brokers []string      `mapstructure:"brokers"`
	Topic   string        `mapstructure:"topic"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// KafkaSink publishes reports as JSON, keyed by session so one session's
// reports stay ordered within a partition.
type KafkaSink struct {
	writer  messageWriter
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewKafkaSink creates a sink publishing to the configured topic.
func NewKafkaSink(cfg KafkaConfig, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}
	return newKafkaSink(w, cfg.Timeout, logger), nil
}

func newKafkaSink(w messageWriter, timeout time.Duration, logger *zap.Logger) *KafkaSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaSink{writer: w, timeout: timeout, logger: logger, now: time.Now}
}

func (s *KafkaSink) Notify(ctx context.Context, report Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(report.SessionID),
		Value: data,
		Time:  s.now(),
	})
	if err != nil {
		s.logger.Warn("publish anomaly report", zap.String("session_id", report.SessionID), zap.Error(err))
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
