package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spigell/interview-guard/internal/integrity"
)

// Report is delivered for every anomaly forwarded to the ledger. It carries
// the cumulative ledger state after the ingestion and the anomalies that
// triggered it.
type Report struct {
	SessionID string              `json:"sessionId"`
	Record    integrity.Record    `json:"record"`
	Anomalies []integrity.Anomaly `json:"anomalies"`
}

// Sink consumes anomaly reports.
type Sink interface {
	Notify(ctx context.Context, report Report) error
}

// Func adapts a plain function to a Sink.
type Func func(ctx context.Context, report Report) error

func (f Func) Notify(ctx context.Context, report Report) error {
	return f(ctx, report)
}

// Fanout delivers a report to every sink. A failing sink does not stop the
// others; all errors are joined.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, report Report) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes a line per report.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink writing to the logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(_ context.Context, report Report) error {
	types := make([]string, 0, len(report.Anomalies))
	for _, a := range report.Anomalies {
		types = append(types, string(a.Type))
	}

	s.logger.Info("anomaly detected",
		zap.String("session_id", report.SessionID),
		zap.Strings("types", types),
		zap.Int("score", report.Record.Summary.OverallSecurityScore),
		zap.String("risk", string(report.Record.Summary.RiskLevel)),
		zap.String("integrity", string(report.Record.Summary.InterviewIntegrity)),
	)
	return nil
}
