package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldSession is the structured log field key for the monitoring session id.
	FieldSession = "session_id"
	// FieldUser is the structured log field key for the candidate id.
	FieldUser = "user_id"
	// FieldJob is the structured log field key for the job id.
	FieldJob = "job_id"
	// FieldProvider is the structured log field key for the reviewer AI provider.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the reviewer AI model.
	FieldModel = "ai_model"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches the fields to the logger, defaulting to a no-op logger
// when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// SessionFields describes one monitoring session. Empty values are skipped.
func SessionFields(sessionID, userID, jobID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldSession, Value: sessionID},
		StringField{Key: FieldUser, Value: userID},
		StringField{Key: FieldJob, Value: jobID},
	)
}

// WithSession scopes the logger to a monitoring session.
func WithSession(logger *zap.Logger, sessionID, userID, jobID string) *zap.Logger {
	return WithFields(logger, SessionFields(sessionID, userID, jobID)...)
}

// ReviewerFields describes the AI provider and model writing reviewer notes.
func ReviewerFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithReviewer attaches the reviewer fields to the logger.
func WithReviewer(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, ReviewerFields(provider, model)...)
}
