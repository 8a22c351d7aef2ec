package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/interview-guard/internal/ai"
	"github.com/spigell/interview-guard/internal/integrity"
	"github.com/spigell/interview-guard/internal/logger"
	"github.com/spigell/interview-guard/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	maxNoteRunes        = 1200
)

const systemInstruction = "You review automated interview integrity reports for a human recruiter. " +
	"You only see aggregated signals, never images or audio. Answer with JSON only."

// Reviewer writes a short recruiter-facing note for a finished session.
type Reviewer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
	maxFlags  int
}

func NewReviewer(generator contentGenerator, log *zap.Logger, maxLogLength int) *Reviewer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	var model string
	if m, ok := generator.(interface{ Model() string }); ok {
		model = m.Model()
	}

	return &Reviewer{
		generator: generator,
		logger:    logger.WithReviewer(log, "gemini", model),
		maxLogLen: maxLogLength,
		maxFlags:  ai.DefaultMaxFlags,
	}
}

// Review returns the note text for rec.
func (r *Reviewer) Review(ctx context.Context, rec integrity.Record) (string, error) {
	assessment, err := r.Assess(ctx, rec)
	if err != nil {
		return "", err
	}
	return assessment.Text(), nil
}

// Assess asks the model about rec and parses its answer. Answers that are
// not JSON are kept verbatim as the note.
func (r *Reviewer) Assess(ctx context.Context, rec integrity.Record) (*ai.Assessment, error) {
	if r == nil || r.generator == nil {
		return nil, errors.New("reviewer is not initialized")
	}

	digest, err := json.MarshalIndent(ai.NewDigest(rec, r.maxFlags), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal digest: %w", err)
	}

	prompt := buildPrompt(string(digest))

	r.logger.Debug("gemini review request",
		zap.String(logger.FieldSession, rec.SessionID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, r.maxLogLen)),
	)

	raw, err := r.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("gemini review response",
		zap.String(logger.FieldSession, rec.SessionID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, r.maxLogLen)),
	)

	assessment := parseResponse(raw)
	assessment.Note = truncateRunes(assessment.Note, maxNoteRunes)
	return assessment, nil
}

func buildPrompt(digestJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Session digest:\n{{DIGEST_JSON}}\n\nJSON Response:"
	}
	return strings.ReplaceAll(template, "{{DIGEST_JSON}}", digestJSON)
}

func parseResponse(raw string) *ai.Assessment {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return &ai.Assessment{Note: strings.TrimSpace(raw), Raw: raw}
	}

	return &ai.Assessment{
		Note:       coerceString(data["note"]),
		Concerns:   coerceStrings(data["concerns"]),
		AgreesRisk: coerceBool(data["agreesWithRisk"]),
		Raw:        raw,
	}
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStrings(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	}
	return nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
