package integrity

import (
	"maps"
	"time"
)

// Record is the persisted monitoring document for one application.
type Record struct {
	SessionID      string          `json:"sessionId,omitempty"`
	UserID         string          `json:"userId,omitempty"`
	JobID          string          `json:"jobId,omitempty"`
	CandidateName  string          `json:"candidateName"`
	Status         string          `json:"status,omitempty"`
	StartedAt      time.Time       `json:"startedAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Anomalies      []RecordAnomaly `json:"anomalies"`
	RedFlags       []RedFlag       `json:"redFlags"`
	SecurityAlerts SecurityAlerts  `json:"securityAlerts"`
	Summary        Summary         `json:"summary"`
	Counters       Counters        `json:"counters"`
	ReviewerNote   string          `json:"reviewerNote,omitempty"`
}

// RecordAnomaly is the wire form of an anomaly.
type RecordAnomaly struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      AnomalyType    `json:"type"`
	Severity  Severity       `json:"severity"`
	Category  Modality       `json:"category"`
	Details   string         `json:"details"`
	Source    Source         `json:"source,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// SecurityAlerts is the wire form of the alert tallies.
type SecurityAlerts struct {
	CriticalCount             int  `json:"criticalCount"`
	HighCount                 int  `json:"highCount"`
	MediumCount               int  `json:"mediumCount"`
	LowCount                  int  `json:"lowCount"`
	IdentityFraudSuspected    bool `json:"identityFraudSuspected"`
	FaceVerificationFailures  int  `json:"faceVerificationFailures"`
	VoiceVerificationFailures int  `json:"voiceVerificationFailures"`
}

// Summary is the reviewer-facing roll-up.
type Summary struct {
	TotalAnomalies       int       `json:"totalAnomalies"`
	TotalRedFlags        int       `json:"totalRedFlags"`
	PersonSwitches       int       `json:"personSwitches"`
	MonitoringDuration   int64     `json:"monitoringDuration"`
	RiskLevel            RiskLevel `json:"riskLevel"`
	OverallSecurityScore int       `json:"overallSecurityScore"`
	InterviewIntegrity   Integrity `json:"interviewIntegrity"`
}

// Record converts the snapshot into its persisted form.
// MonitoringDuration is expressed in whole seconds.
func (s Snapshot) Record() Record {
	anomalies := make([]RecordAnomaly, 0, len(s.Anomalies))
	for _, a := range s.Anomalies {
		anomalies = append(anomalies, RecordAnomaly{
			Timestamp: a.Timestamp,
			Type:      a.Type,
			Severity:  a.Severity,
			Category:  a.Modality,
			Details:   a.Details,
			Source:    a.Source,
			Data:      maps.Clone(a.Data),
		})
	}

	flags := append([]RedFlag{}, s.RedFlags...)

	var duration int64
	if !s.StartedAt.IsZero() && s.UpdatedAt.After(s.StartedAt) {
		duration = int64(s.UpdatedAt.Sub(s.StartedAt) / time.Second)
	}

	return Record{
		SessionID:     s.SessionID,
		UserID:        s.UserID,
		JobID:         s.JobID,
		CandidateName: s.CandidateName,
		Status:        s.Status,
		StartedAt:     s.StartedAt,
		UpdatedAt:     s.UpdatedAt,
		Anomalies:     anomalies,
		RedFlags:      flags,
		SecurityAlerts: SecurityAlerts{
			CriticalCount:             s.Alerts.Critical,
			HighCount:                 s.Alerts.High,
			MediumCount:               s.Alerts.Medium,
			LowCount:                  s.Alerts.Low,
			IdentityFraudSuspected:    s.Alerts.IdentityFraudSuspected,
			FaceVerificationFailures:  s.Counters.FaceFailures,
			VoiceVerificationFailures: s.Counters.VoiceFailures,
		},
		Summary: Summary{
			TotalAnomalies:       len(s.Anomalies),
			TotalRedFlags:        len(s.RedFlags),
			PersonSwitches:       s.Counters.PersonSwitches,
			MonitoringDuration:   duration,
			RiskLevel:            s.Risk,
			OverallSecurityScore: s.Score,
			InterviewIntegrity:   s.Integrity,
		},
		Counters: s.Counters,
	}
}

// Restore rebuilds an active ledger from a persisted record so a reconnecting
// session keeps accumulating onto the same counters. The earlier start time wins.
func Restore(rec Record, info SessionInfo) *Ledger {
	if !rec.StartedAt.IsZero() && (info.StartedAt.IsZero() || rec.StartedAt.Before(info.StartedAt)) {
		info.StartedAt = rec.StartedAt
	}
	if info.CandidateName == "" {
		info.CandidateName = rec.CandidateName
	}

	l := NewLedger(info)
	l.counters = rec.Counters
	l.counters.FaceFailures = max(rec.Counters.FaceFailures, rec.SecurityAlerts.FaceVerificationFailures)
	l.counters.VoiceFailures = max(rec.Counters.VoiceFailures, rec.SecurityAlerts.VoiceVerificationFailures)
	l.counters.PersonSwitches = max(rec.Counters.PersonSwitches, rec.Summary.PersonSwitches)
	l.alerts = Alerts{
		Critical:               rec.SecurityAlerts.CriticalCount,
		High:                   rec.SecurityAlerts.HighCount,
		Medium:                 rec.SecurityAlerts.MediumCount,
		Low:                    rec.SecurityAlerts.LowCount,
		IdentityFraudSuspected: rec.SecurityAlerts.IdentityFraudSuspected,
	}

	for _, a := range rec.Anomalies {
		l.anomalies = append(l.anomalies, Anomaly{
			Timestamp: a.Timestamp,
			Modality:  a.Category,
			Type:      a.Type,
			Severity:  a.Severity,
			Source:    a.Source,
			Details:   a.Details,
			Data:      maps.Clone(a.Data),
		})
	}
	l.flags = append(l.flags, rec.RedFlags...)
	if rec.UpdatedAt.After(l.updatedAt) {
		l.updatedAt = rec.UpdatedAt
	}

	l.recompute()
	return l
}
