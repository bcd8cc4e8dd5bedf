// Package assessment turns free-text clinical measurements into a risk
// assessment: it sanitizes keystrokes, validates values against their field
// ranges, asks a remote model for a prediction and, for tests that allow it,
// falls back to a local weighted-sum heuristic.
package assessment

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel is the coarse classification shown to the clinician.
type RiskLevel string

const (
	RiskLow  RiskLevel = "Low"
	RiskHigh RiskLevel = "High"
)

// Source records which path produced an assessment.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

const (
	// remoteHighThreshold is exclusive: 50% is still Low.
	remoteHighThreshold = 50.0
	// fallbackHighThreshold is inclusive: 20% is High.
	fallbackHighThreshold = 20.0
	// fallbackMaxScore is the assumed maximum of every field in the fallback formula.
	fallbackMaxScore = 100
)

// Prediction is what the remote model returns.
type Prediction struct {
	RiskPercentage float64 `json:"riskPercentage"`
	Confidence     float64 `json:"confidence"`
}

// Breakdown is the intermediate arithmetic of a fallback assessment.
type Breakdown struct {
	TotalSum float64 `json:"totalSum"`
	Average  float64 `json:"average"`
}

// RiskAssessment is the result of one submission. It is never modified after
// ComputeRisk returns it.
type RiskAssessment struct {
	ID             uuid.UUID  `json:"id"`
	Test           string     `json:"test"`
	RiskPercentage float64    `json:"riskPercentage"`
	RiskLevel      RiskLevel  `json:"riskLevel"`
	Confidence     *float64   `json:"confidence,omitempty"`
	Source         Source     `json:"source"`
	RemoteError    string     `json:"remoteError,omitempty"`
	Breakdown      *Breakdown `json:"breakdown,omitempty"`
	Guidance       []string   `json:"guidance,omitempty"`
	AssessedAt     time.Time  `json:"assessedAt"`
}

func remoteRiskLevel(pct float64) RiskLevel {
	if pct > remoteHighThreshold {
		return RiskHigh
	}
	return RiskLow
}

func fallbackRiskLevel(pct float64) RiskLevel {
	if pct >= fallbackHighThreshold {
		return RiskHigh
	}
	return RiskLow
}
