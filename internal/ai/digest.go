package ai

import (
	"sort"

	"github.com/spigell/interview-guard/internal/integrity"
)

// DefaultMaxFlags bounds how many red flags a digest carries.
const DefaultMaxFlags = 20

// Digest is the compact, provider-neutral view of a monitoring record that
// reviewer prompts are built from. It never carries biometric payloads.
type Digest struct {
	Candidate              string             `json:"candidate,omitempty"`
	DurationSeconds        int64              `json:"durationSeconds"`
	Score                  int                `json:"score"`
	Risk                   string             `json:"risk"`
	Integrity              string             `json:"integrity"`
	IdentityFraudSuspected bool               `json:"identityFraudSuspected"`
	Counters               integrity.Counters `json:"counters"`
	AnomalyTypes           map[string]int     `json:"anomalyTypes"`
	RedFlags               []Flag             `json:"redFlags"`
	OmittedFlags           int                `json:"omittedFlags,omitempty"`
}

// Flag is one red flag, positioned relative to the session start.
type Flag struct {
	AtSeconds int64  `json:"atSeconds"`
	Type      string `json:"type"`
	Severity  string `json:"severity"`
	Details   string `json:"details"`
}

// NewDigest summarizes rec. Red flags are ordered by severity, then time,
// and cut at maxFlags.
func NewDigest(rec integrity.Record, maxFlags int) Digest {
	if maxFlags <= 0 {
		maxFlags = DefaultMaxFlags
	}

	d := Digest{
		Candidate:              rec.CandidateName,
		DurationSeconds:        rec.Summary.MonitoringDuration,
		Score:                  rec.Summary.OverallSecurityScore,
		Risk:                   string(rec.Summary.RiskLevel),
		Integrity:              string(rec.Summary.InterviewIntegrity),
		IdentityFraudSuspected: rec.SecurityAlerts.IdentityFraudSuspected,
		Counters:               rec.Counters,
		AnomalyTypes:           make(map[string]int),
	}

	for _, a := range rec.Anomalies {
		d.AnomalyTypes[string(a.Type)]++
	}

	flags := append([]integrity.RedFlag(nil), rec.RedFlags...)
	sort.SliceStable(flags, func(i, j int) bool {
		ri, rj := flagRank(flags[i].Severity), flagRank(flags[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return flags[i].Timestamp.Before(flags[j].Timestamp)
	})

	if len(flags) > maxFlags {
		d.OmittedFlags = len(flags) - maxFlags
		flags = flags[:maxFlags]
	}

	d.RedFlags = make([]Flag, 0, len(flags))
	for _, f := range flags {
		var at int64
		if !rec.StartedAt.IsZero() && f.Timestamp.After(rec.StartedAt) {
			at = int64(f.Timestamp.Sub(rec.StartedAt).Seconds())
		}
		d.RedFlags = append(d.RedFlags, Flag{
			AtSeconds: at,
			Type:      string(f.Type),
			Severity:  string(f.Severity),
			Details:   f.Details,
		})
	}

	return d
}

func flagRank(s integrity.FlagSeverity) int {
	switch s {
	case integrity.FlagCritical:
		return 4
	case integrity.FlagHigh:
		return 3
	case integrity.FlagMedium:
		return 2
	case integrity.FlagLow:
		return 1
	default:
		return 0
	}
}

// Assessment is a reviewer's read of a digest.
type Assessment struct {
	Note       string   `json:"note"`
	Concerns   []string `json:"concerns,omitempty"`
	AgreesRisk bool     `json:"agreesWithRisk"`
	Raw        string   `json:"-"`
}

// Text renders the assessment as the single note stored on a record.
func (a Assessment) Text() string {
	if len(a.Concerns) == 0 {
		return a.Note
	}
	out := a.Note
	for _, c := range a.Concerns {
		if out != "" {
			out += "\n"
		}
		out += "- " + c
	}
	return out
}
