package risk

import (
	"time"

	"github.com/byteness/sentinel-authz/session"
)

// Thresholds. Ties are inclusive at the lower bound: a score of exactly 30
// is MEDIUM, not LOW.
const (
	ThresholdMedium   = 30
	ThresholdHigh     = 60
	ThresholdCritical = 80
)

// Engine scores signals into a RiskProfile. The zero value uses
// DefaultWeight and the package's default thresholds; NewEngine lets the
// caller override them from configuration.
type Engine struct {
	weight            int
	thresholdMedium   int
	thresholdHigh     int
	thresholdCritical int
}

// NewEngine builds a scoring engine from configured weight and thresholds.
func NewEngine(weight, thresholdMedium, thresholdHigh, thresholdCritical int) *Engine {
	return &Engine{
		weight:            weight,
		thresholdMedium:   thresholdMedium,
		thresholdHigh:     thresholdHigh,
		thresholdCritical: thresholdCritical,
	}
}

// DefaultEngine returns an Engine using the package's documented defaults.
func DefaultEngine() *Engine {
	return NewEngine(DefaultWeight, ThresholdMedium, ThresholdHigh, ThresholdCritical)
}

// Evaluate scores the given signals for a session and returns the derived
// profile. It does not consult or mutate the session store; see Service for
// the enforcing wrapper.
func (e *Engine) Evaluate(sessionID, subjectID string, signals []Signal, now time.Time) RiskProfile {
	weight := e.weight
	if weight <= 0 {
		weight = DefaultWeight
	}

	total := 0
	for _, s := range signals {
		total += s.Severity
	}
	score := total * weight
	if score > 100 {
		score = 100
	}

	return RiskProfile{
		SessionID:   sessionID,
		SubjectID:   subjectID,
		Score:       score,
		Level:       e.level(score),
		Signals:     signals,
		EvaluatedAt: now,
	}
}

func (e *Engine) level(score int) session.RiskLevel {
	tm, th, tc := e.thresholdMedium, e.thresholdHigh, e.thresholdCritical
	if tm <= 0 {
		tm = ThresholdMedium
	}
	if th <= 0 {
		th = ThresholdHigh
	}
	if tc <= 0 {
		tc = ThresholdCritical
	}

	switch {
	case score >= tc:
		return session.RiskCritical
	case score >= th:
		return session.RiskHigh
	case score >= tm:
		return session.RiskMedium
	default:
		return session.RiskLow
	}
}
