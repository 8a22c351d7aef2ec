package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/spigell/interview-guard/internal/integrity"
)

// MemoryStore keeps monitoring records in process. Records are stored
// serialized so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// LoadMonitoringState implements ApplicationStore.
func (s *MemoryStore) LoadMonitoringState(_ context.Context, userID, jobID string) (*integrity.Record, error) {
	s.mu.RLock()
	data, ok := s.records[recordKey(userID, jobID)]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var rec integrity.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveMonitoringState implements ApplicationStore.
func (s *MemoryStore) SaveMonitoringState(_ context.Context, userID, jobID string, rec integrity.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode record: %v", integrity.ErrPersistence, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey(userID, jobID)] = data
	return nil
}

// Close implements ApplicationStore.
func (s *MemoryStore) Close() error {
	return nil
}

func recordKey(userID, jobID string) string {
	return strings.TrimSpace(userID) + ":" + strings.TrimSpace(jobID)
}

// Enrollment holds the reference biometrics of one candidate.
type Enrollment struct {
	Face  string `mapstructure:"face" json:"face_image_ref"`
	Voice string `mapstructure:"voice" json:"voice_audio_ref"`
}

// StaticEnrollments serves enrollments from configuration.
type StaticEnrollments struct {
	enrollments map[string]Enrollment
}

// NewStaticEnrollments creates an enrollment store over a fixed map. User ids
// are matched case-insensitively since config keys arrive lowercased.
func NewStaticEnrollments(enrollments map[string]Enrollment) *StaticEnrollments {
	byID := make(map[string]Enrollment, len(enrollments))
	for id, e := range enrollments {
		byID[enrollmentKey(id)] = e
	}
	return &StaticEnrollments{enrollments: byID}
}

func enrollmentKey(userID string) string {
	return strings.ToLower(strings.TrimSpace(userID))
}

// GetReferenceFace implements EnrollmentStore.
func (s *StaticEnrollments) GetReferenceFace(_ context.Context, userID string) (string, error) {
	e, ok := s.enrollments[enrollmentKey(userID)]
	if !ok || strings.TrimSpace(e.Face) == "" {
		return "", fmt.Errorf("%w: %s", ErrNotEnrolled, userID)
	}
	return e.Face, nil
}

// GetReferenceVoice implements EnrollmentStore.
func (s *StaticEnrollments) GetReferenceVoice(_ context.Context, userID string) (string, error) {
	e, ok := s.enrollments[enrollmentKey(userID)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotEnrolled, userID)
	}
	return strings.TrimSpace(e.Voice), nil
}
