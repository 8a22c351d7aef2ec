package integrity

import (
	"maps"
	"math"
	"sync"
	"time"
)

// Session statuses.
const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// Counters are the cumulative per-session deviation counts. They never decrease.
type Counters struct {
	FaceDeviations     int `json:"faceDeviations"`
	VoiceAnomalies     int `json:"voiceAnomalies"`
	PersonSwitches     int `json:"personSwitches"`
	EnvironmentChanges int `json:"environmentChanges"`
	ClothingChanges    int `json:"clothingChanges"`
	FaceFailures       int `json:"faceVerificationFailures"`
	VoiceFailures      int `json:"voiceVerificationFailures"`
}

// Alerts are the severity tallies and the one-way fraud flag.
type Alerts struct {
	Critical               int  `json:"criticalCount"`
	High                   int  `json:"highCount"`
	Medium                 int  `json:"mediumCount"`
	Low                    int  `json:"lowCount"`
	IdentityFraudSuspected bool `json:"identityFraudSuspected"`
}

// SessionInfo identifies the interview attempt a ledger belongs to.
type SessionInfo struct {
	SessionID     string
	UserID        string
	JobID         string
	CandidateName string
	StartedAt     time.Time
}

// Snapshot is a consistent copy of the ledger state.
type Snapshot struct {
	SessionInfo
	Status    string
	UpdatedAt time.Time
	Counters  Counters
	Alerts    Alerts
	Anomalies []Anomaly
	RedFlags  []RedFlag
	Score     int
	Risk      RiskLevel
	Integrity Integrity
}

// rule maps an anomaly type onto ledger effects.
type rule struct {
	count    func(*Counters)
	flag     RedFlagType
	flagSev  FlagSeverity
	alert    Severity
	identity bool
}

var rules = map[AnomalyType]rule{
	AnomalyPersonSwitch: {
		count:    func(c *Counters) { c.PersonSwitches++ },
		flag:     RedFlagIdentityFraud,
		flagSev:  FlagCritical,
		identity: true,
	},
	AnomalyMultipleFaces: {
		flag:     RedFlagIdentityFraud,
		flagSev:  FlagCritical,
		identity: true,
	},
	AnomalyFaceVerificationFail: {
		count:   func(c *Counters) { c.FaceFailures++ },
		flag:    RedFlagFaceVerification,
		flagSev: FlagHigh,
		alert:   SeverityHigh,
	},
	AnomalyFaceQualityLow: {
		count: func(c *Counters) { c.FaceDeviations++ },
		alert: SeverityMedium,
	},
	AnomalyVoiceVerificationFail: {
		count:   func(c *Counters) { c.VoiceFailures++ },
		flag:    RedFlagVoiceVerification,
		flagSev: FlagHigh,
		alert:   SeverityHigh,
	},
	AnomalyVoiceCharacteristics: {
		count:   func(c *Counters) { c.VoiceAnomalies++ },
		flag:    RedFlagVoicePatternAnomaly,
		flagSev: FlagHigh,
		alert:   SeverityHigh,
	},
	AnomalyVolumeChange: {
		count:   func(c *Counters) { c.VoiceAnomalies++ },
		flag:    RedFlagVoicePatternAnomaly,
		flagSev: FlagMedium,
		alert:   SeverityMedium,
	},
	AnomalyEnvironmentChange: {
		count:   func(c *Counters) { c.EnvironmentChanges++ },
		flag:    RedFlagEnvironmentChange,
		flagSev: FlagMedium,
		alert:   SeverityMedium,
	},
	AnomalyClothingChange: {
		count:   func(c *Counters) { c.ClothingChanges++ },
		flag:    RedFlagAppearanceChange,
		flagSev: FlagHigh,
		alert:   SeverityHigh,
	},
}

// Ledger is the per-session security ledger. It is safe for concurrent use;
// ingestions are applied in call order.
type Ledger struct {
	mu        sync.Mutex
	info      SessionInfo
	status    string
	updatedAt time.Time
	counters  Counters
	alerts    Alerts
	anomalies []Anomaly
	flags     []RedFlag
	score     int
	risk      RiskLevel
	integrity Integrity
}

// NewLedger creates an empty ledger for the session.
func NewLedger(info SessionInfo) *Ledger {
	l := &Ledger{
		info:      info,
		status:    StatusActive,
		updatedAt: info.StartedAt,
	}
	l.recompute()
	return l
}

// Ingest folds one anomaly into the ledger and returns the updated snapshot.
func (l *Ledger) Ingest(a Anomaly) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.status == StatusEnded {
		return Snapshot{}, ErrLedgerClosed
	}

	l.anomalies = append(l.anomalies, a)
	if a.Timestamp.After(l.updatedAt) {
		l.updatedAt = a.Timestamp
	}

	r, known := rules[a.Type]
	if !known {
		l.tally(a.Severity)
		l.recompute()
		return l.snapshot(), nil
	}

	if r.count != nil {
		r.count(&l.counters)
	}
	if r.identity {
		l.alerts.IdentityFraudSuspected = true
	}
	if r.alert != "" {
		l.tally(r.alert)
	}
	if r.flag != "" {
		l.flags = append(l.flags, RedFlag{
			Type:      r.flag,
			Details:   a.Details,
			Severity:  r.flagSev,
			Timestamp: a.Timestamp,
			Data:      maps.Clone(a.Data),
		})
	}

	l.recompute()
	return l.snapshot(), nil
}

// Snapshot returns a copy of the current state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// Close finalizes the ledger. Further ingestions fail with ErrLedgerClosed.
func (l *Ledger) Close(at time.Time) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.status != StatusEnded {
		l.status = StatusEnded
		if at.After(l.updatedAt) {
			l.updatedAt = at
		}
	}
	return l.snapshot()
}

func (l *Ledger) tally(sev Severity) {
	switch sev {
	case SeverityCritical:
		l.alerts.Critical++
	case SeverityHigh:
		l.alerts.High++
	case SeverityMedium:
		l.alerts.Medium++
	case SeverityLow:
		l.alerts.Low++
	}
}

func (l *Ledger) recompute() {
	l.score = Score(l.counters, l.alerts)
	l.risk = Risk(l.counters, l.alerts, len(l.anomalies))
	l.integrity = Verdict(l.score, l.alerts)
}

func (l *Ledger) snapshot() Snapshot {
	return Snapshot{
		SessionInfo: l.info,
		Status:      l.status,
		UpdatedAt:   l.updatedAt,
		Counters:    l.counters,
		Alerts:      l.alerts,
		Anomalies:   append([]Anomaly(nil), l.anomalies...),
		RedFlags:    append([]RedFlag(nil), l.flags...),
		Score:       l.score,
		Risk:        l.risk,
		Integrity:   l.integrity,
	}
}

// Score computes the 0..100 integrity score from the full ledger.
// The sum is taken in float64 so extreme counters clamp instead of overflowing.
func Score(c Counters, a Alerts) int {
	score := 100.0 -
		30*float64(a.Critical) -
		15*float64(a.High) -
		8*float64(a.Medium) -
		3*float64(a.Low) -
		10*float64(c.FaceFailures) -
		10*float64(c.VoiceFailures) -
		25*float64(c.PersonSwitches) -
		5*float64(c.FaceDeviations) -
		5*float64(c.VoiceAnomalies)
	if a.IdentityFraudSuspected {
		score -= 40
	}

	return int(math.Max(0, math.Min(100, score)))
}

// Risk computes the session risk level.
func Risk(c Counters, a Alerts, totalAnomalies int) RiskLevel {
	switch {
	case a.IdentityFraudSuspected || a.Critical > 0:
		return RiskCritical
	case c.PersonSwitches > 0 || a.High >= 3:
		return RiskHigh
	case totalAnomalies >= 5 || a.High >= 1 || totalAnomalies >= 2:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Verdict computes the overall interview integrity.
func Verdict(score int, a Alerts) Integrity {
	switch {
	case a.IdentityFraudSuspected || a.Critical > 0:
		return IntegrityCompromised
	case score < 60 || a.High >= 2:
		return IntegrityQuestionable
	case score >= 85:
		return IntegrityVerified
	default:
		return IntegrityQuestionable
	}
}
