package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"

	"github.com/spigell/interview-guard/internal/integrity"
)

const (
	applicationsTable = "applications"
	enrollmentsTable  = "enrollments"
)

type applicationRow struct {
	UserID          string          `json:"user_id"`
	JobID           string          `json:"job_id"`
	MonitoringState json.RawMessage `json:"monitoring_state"`
}

// SupabaseStore keeps monitoring records in the monitoring_state column of
// the applications table.
type SupabaseStore struct {
	client *supabase.Client
}

// NewSupabaseStore creates a Supabase backed store.
func NewSupabaseStore(client *supabase.Client) *SupabaseStore {
	return &SupabaseStore{client: client}
}

// LoadMonitoringState implements ApplicationStore.
func (s *SupabaseStore) LoadMonitoringState(_ context.Context, userID, jobID string) (*integrity.Record, error) {
	var rows []applicationRow
	_, err := s.client.From(applicationsTable).
		Select("user_id,job_id,monitoring_state", "", false).
		Eq("user_id", userID).
		Eq("job_id", jobID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("%w: load application: %v", integrity.ErrPersistence, err)
	}

	if len(rows) == 0 {
		return nil, nil
	}
	raw := strings.TrimSpace(string(rows[0].MonitoringState))
	if raw == "" || raw == "null" {
		return nil, nil
	}

	var rec integrity.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("%w: decode record: %v", integrity.ErrPersistence, err)
	}
	return &rec, nil
}

// SaveMonitoringState implements ApplicationStore.
func (s *SupabaseStore) SaveMonitoringState(_ context.Context, userID, jobID string, rec integrity.Record) error {
	update := map[string]any{"monitoring_state": rec}
	_, _, err := s.client.From(applicationsTable).
		Update(update, "minimal", "").
		Eq("user_id", userID).
		Eq("job_id", jobID).
		Execute()
	if err != nil {
		return fmt.Errorf("%w: update application: %v", integrity.ErrPersistence, err)
	}
	return nil
}

// Close implements ApplicationStore.
func (s *SupabaseStore) Close() error {
	return nil
}

type enrollmentRow struct {
	UserID string `json:"user_id"`
	Enrollment
}

// SupabaseEnrollments reads reference biometrics from the enrollments table.
type SupabaseEnrollments struct {
	client *supabase.Client
}

// NewSupabaseEnrollments creates a Supabase backed enrollment store.
func NewSupabaseEnrollments(client *supabase.Client) *SupabaseEnrollments {
	return &SupabaseEnrollments{client: client}
}

// GetReferenceFace implements EnrollmentStore.
func (s *SupabaseEnrollments) GetReferenceFace(ctx context.Context, userID string) (string, error) {
	e, err := s.get(ctx, userID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(e.Face) == "" {
		return "", fmt.Errorf("%w: %s has no face sample", ErrNotEnrolled, userID)
	}
	return e.Face, nil
}

// GetReferenceVoice implements EnrollmentStore.
func (s *SupabaseEnrollments) GetReferenceVoice(ctx context.Context, userID string) (string, error) {
	e, err := s.get(ctx, userID)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(e.Voice), nil
}

func (s *SupabaseEnrollments) get(_ context.Context, userID string) (*Enrollment, error) {
	var rows []enrollmentRow
	_, err := s.client.From(enrollmentsTable).
		Select("user_id,face_image_ref,voice_audio_ref", "", false).
		Eq("user_id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("%w: load enrollment: %v", integrity.ErrPersistence, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotEnrolled, userID)
	}
	return &rows[0].Enrollment, nil
}
