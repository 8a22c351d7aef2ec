package biometric

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/interview-guard/internal/integrity"
)

var (
	similarityKeys = []string{"similarity", "similarity_score", "score", "confidence_score"}
	ensembleKeys   = []string{"ensemble_score", "ensembleScore", "ensemble", "score", "similarity"}
	boxKeys        = []string{"bounding_boxes", "boundingBoxes", "faces", "boxes"}
)

// percentCutoff separates fractions that drifted past 1 from percentages.
const percentCutoff = 1.5

func normalizeFace(raw map[string]any) Result {
	if err := backendError(raw); err != nil {
		return failed(err)
	}

	similarity := firstUnit(raw, similarityKeys...)
	if math.IsNaN(similarity) {
		return failed(fmt.Errorf("%w: malformed payload: no similarity", integrity.ErrTransientBackend))
	}

	boxes, faceCount, counted := faces(raw)
	if n := coerceFloat(raw["face_count"]); !math.IsNaN(n) {
		faceCount = int(n)
	} else if n := coerceFloat(raw["faces_detected"]); !math.IsNaN(n) {
		faceCount = int(n)
	} else if !counted {
		// A backend that matched without reporting boxes saw one face.
		faceCount = 1
	}

	return Result{
		Verified:      coerceBool(firstValue(raw, "verified", "match", "matched")),
		Similarity:    similarity,
		Confidence:    confidenceLabel(raw["confidence"], similarity),
		FaceCount:     faceCount,
		BoundingBoxes: boxes,
	}
}

func normalizeVoice(raw map[string]any) Result {
	if err := backendError(raw); err != nil {
		return failed(err)
	}

	score := firstUnit(raw, ensembleKeys...)
	if math.IsNaN(score) {
		return failed(fmt.Errorf("%w: malformed payload: no ensemble score", integrity.ErrTransientBackend))
	}

	return Result{
		Verified:      coerceBool(firstValue(raw, "verified", "match", "matched")),
		EnsembleScore: score,
		Confidence:    confidenceLabel(raw["confidence"], score),
	}
}

// backendError extracts an explicit failure from a 2xx payload.
func backendError(raw map[string]any) error {
	msg := coerceString(raw["error"])
	if success, ok := raw["success"]; ok && !coerceBool(success) && msg == "" {
		msg = coerceString(raw["message"])
		if msg == "" {
			msg = "backend reported failure"
		}
	}
	if msg == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", integrity.ErrInvalidInput, msg)
}

// confidenceLabel normalizes the label. Numeric confidences and missing
// labels are derived from the score.
func confidenceLabel(v any, score float64) string {
	if s, ok := v.(string); ok {
		label := strings.ToUpper(strings.TrimSpace(s))
		switch label {
		case integrity.ConfidenceHigh, integrity.ConfidenceMedium, integrity.ConfidenceLow:
			return label
		}
		if f := unitOf(label); !math.IsNaN(f) {
			return labelFor(f)
		}
	}
	if f := unitOf(v); !math.IsNaN(f) {
		return labelFor(f)
	}
	return labelFor(score)
}

func labelFor(score float64) string {
	switch {
	case score >= 0.8:
		return integrity.ConfidenceHigh
	case score >= 0.6:
		return integrity.ConfidenceMedium
	default:
		return integrity.ConfidenceLow
	}
}

// unitOf maps a score onto [0,1]. Strings ending in "%" and values above
// percentCutoff are percentages; anything else just past 1 is clamped.
func unitOf(v any) float64 {
	f := coerceFloat(v)
	if math.IsNaN(f) {
		return f
	}
	if s, ok := v.(string); ok && strings.HasSuffix(strings.TrimSpace(s), "%") {
		f /= 100
	} else if f > percentCutoff {
		f /= 100
	}
	return math.Max(0, math.Min(1, f))
}

func firstUnit(raw map[string]any, keys ...string) float64 {
	for _, key := range keys {
		if f := unitOf(raw[key]); !math.IsNaN(f) {
			return f
		}
	}
	return math.NaN()
}

// faces reads the box list. counted is false when the payload says nothing
// about faces; an empty list or a numeric "faces" value is a real count.
func faces(raw map[string]any) (boxes []BoundingBox, count int, counted bool) {
	v := firstValue(raw, boxKeys...)
	if v == nil {
		return nil, 0, false
	}
	if n := coerceFloat(v); !math.IsNaN(n) {
		return nil, int(n), true
	}

	boxes = decodeBoxes(v)
	_, isList := v.([]any)
	return boxes, len(boxes), isList
}

func decodeBoxes(v any) []BoundingBox {
	if v == nil {
		return nil
	}

	if list, ok := v.([]any); ok {
		normalized := make([]any, 0, len(list))
		for _, item := range list {
			normalized = append(normalized, normalizeBox(item))
		}
		v = normalized
	}

	var boxes []BoundingBox
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &boxes,
	})
	if err != nil {
		return nil
	}
	if err := decoder.Decode(v); err != nil {
		return nil
	}

	return boxes
}

// normalizeBox accepts [x, y, w, h] tuples and short keys.
func normalizeBox(item any) any {
	switch box := item.(type) {
	case []any:
		if len(box) < 4 {
			return map[string]any{}
		}
		return map[string]any{"x": box[0], "y": box[1], "width": box[2], "height": box[3]}
	case map[string]any:
		out := make(map[string]any, len(box))
		for k, val := range box {
			switch strings.ToLower(k) {
			case "w":
				k = "width"
			case "h":
				k = "height"
			case "left":
				k = "x"
			case "top":
				k = "y"
			}
			out[k] = val
		}
		return out
	default:
		return item
	}
}

func firstValue(raw map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes" || lower == "1"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case bool:
		if !val {
			return ""
		}
		return "true"
	case error:
		return val.Error()
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

// IsTransient reports whether the result failed because the backend was unavailable.
func (r Result) IsTransient() bool {
	return r.Err != nil && errors.Is(r.Err, integrity.ErrTransientBackend)
}
