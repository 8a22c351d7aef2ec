package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"

	"github.com/spigell/interview-guard/internal/integrity"
	"github.com/spigell/interview-guard/internal/store"
)

// hangingReviewer never answers before its context ends.
type hangingReviewer struct{}

func (hangingReviewer) Review(ctx context.Context, _ integrity.Record) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type noteReviewer string

func (r noteReviewer) Review(context.Context, integrity.Record) (string, error) {
	return string(r), nil
}

func newRedisSession(t *testing.T, reviewer Reviewer) (*Session, *store.RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	st := store.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", time.Hour)
	t.Cleanup(func() { _ = st.Close() })

	enrollments := store.NewStaticEnrollments(map[string]store.Enrollment{
		"u1": {Face: "faces/u1.jpg"},
	})

	session := NewSession(
		integrity.SessionInfo{SessionID: "s1", UserID: "u1", JobID: "j1"},
		Config{ReviewTimeout: 50 * time.Millisecond},
		Deps{
			Verifier:   &stubVerifier{face: faceSequence(1.0)},
			Source:     &stubSource{},
			Enrollment: enrollments,
			Store:      st,
			Reviewer:   reviewer,
			Clock:      clock.NewMock(),
		},
	)
	if _, err := session.open(context.Background()); err != nil {
		t.Fatalf("open session: %v", err)
	}
	return session, st
}

func TestStopSavesFinalRecordWhenReviewerHangs(t *testing.T) {
	t.Parallel()

	session, st := newRedisSession(t, hangingReviewer{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	rec, err := session.Stop(ctx)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if rec.ReviewerNote != "" {
		t.Fatalf("expected no reviewer note, got %q", rec.ReviewerNote)
	}

	stored, err := st.LoadMonitoringState(context.Background(), "u1", "j1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored == nil || stored.Status != integrity.StatusEnded {
		t.Fatalf("expected the ended record to be stored, got %+v", stored)
	}
}

func TestStopSavesReviewerNote(t *testing.T) {
	t.Parallel()

	session, st := newRedisSession(t, noteReviewer("steady session, no concerns"))

	rec, err := session.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop: %v", err)
	}

	stored, err := st.LoadMonitoringState(context.Background(), "u1", "j1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored == nil || stored.ReviewerNote != rec.ReviewerNote || rec.ReviewerNote != "steady session, no concerns" {
		t.Fatalf("expected the note to be saved, got %+v", stored)
	}
}

func TestStopDrainsQueuedAnomalies(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubVerifier{face: faceSequence(1.0)}, &stubSource{})
	f.open(t)
	f.establishBaseline(t)

	now := f.clock.Now()
	f.session.queue.Push(integrity.Anomaly{
		Timestamp: now, Modality: integrity.ModalityEnvironment,
		Type: integrity.AnomalyEnvironmentChange, Severity: integrity.SeverityMedium,
	})
	f.session.queue.Push(integrity.Anomaly{
		Timestamp: now.Add(300 * time.Millisecond), Modality: integrity.ModalityAppearance,
		Type: integrity.AnomalyClothingChange, Severity: integrity.SeverityHigh,
	})

	rec, err := f.session.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop: %v", err)
	}

	if rec.Summary.TotalAnomalies != 2 {
		t.Fatalf("expected both queued anomalies in the final record, got %d", rec.Summary.TotalAnomalies)
	}
	if f.session.queue.Len() != 0 {
		t.Fatalf("expected an empty queue after stop, got %d", f.session.queue.Len())
	}

	f.reports.mu.Lock()
	defer f.reports.mu.Unlock()
	if len(f.reports.reports) != 2 {
		t.Fatalf("expected both anomalies to be reported, got %d", len(f.reports.reports))
	}
}
