// Package risk implements continuous access evaluation: deriving signals
// from the current request against the session's last-known context,
// scoring them deterministically, and enforcing the outcome (C2, C3, C4).
//
// There is no teacher analog for this package — the teacher's policy engine
// evaluates static allow/deny rules, never a running risk score — so it is
// built fresh, in the teacher's idiom (Signal/RiskProfile as plain structs,
// narrow interfaces, deterministic and explainable over any use of a
// probabilistic model, per spec's explicit non-goal on ML-based scoring).
package risk

import (
	"time"

	"github.com/byteness/sentinel-authz/device"
	"github.com/byteness/sentinel-authz/session"
)

// Signal types, named for what triggered them rather than implementation
// detail.
const (
	SignalIPAnomaly        = "IP_ANOMALY"
	SignalDeviceMismatch    = "DEVICE_MISMATCH"
	SignalUserAgentChange   = "USER_AGENT_CHANGE"
	SignalAutomationHeader  = "AUTOMATION_HEADER"
	SignalGeoDiscontinuity  = "GEO_DISCONTINUITY"
)

// Default severities. Device mismatch and IP anomaly severities are fixed by
// spec example S3 (IP_ANOMALY sev=3, DEVICE_MISMATCH sev=7); the remaining
// severities are this package's own judgment call, recorded in DESIGN.md.
const (
	SeverityIPAnomaly       = 3
	SeverityDeviceMismatch  = 7
	SeverityUserAgentChange = 2
	SeverityAutomation      = 4
	SeverityGeoDiscontinuity = 6
)

// DefaultWeight is the multiplier W in score = min(100, Σ severity_i × W).
const DefaultWeight = 5

// Signal is one contributing factor to a risk score.
type Signal struct {
	Type     string `json:"type"`
	Severity int    `json:"severity"`

	// Evidence is an optional human-readable detail supporting the signal,
	// e.g. a device posture summary backing a DEVICE_MISMATCH signal. Most
	// signal types carry none; "" is the common case.
	Evidence string `json:"evidence,omitempty"`
}

// Request carries the subset of the inbound HTTP request the risk engine
// cares about.
type Request struct {
	IP         string
	DeviceID   string
	UserAgent  string
	Geo        string // opaque geo token, e.g. "US" or a lat/lon pair; "" if absent
	Automation bool   // true if the automation header was present

	// Posture is the caller device's self-reported security state, if the
	// request carried one. nil when no posture was supplied, which is
	// treated as "unknown" rather than compliant.
	Posture *device.DevicePosture
}

// Observed is the session's last-seen request context, carried by the
// caller between evaluations (the Session record itself stores no such
// fields, per spec §4.1's field list — CAE keeps this in the risk layer).
type Observed struct {
	IP        string
	UserAgent string
	Geo       string
}

// RiskProfile is the derived, non-authoritative output of one evaluation.
type RiskProfile struct {
	SessionID   string             `json:"sessionId"`
	SubjectID   string             `json:"subjectId"`
	Score       int                `json:"score"`
	Level       session.RiskLevel  `json:"level"`
	Signals     []Signal           `json:"signals"`
	EvaluatedAt time.Time          `json:"evaluatedAt"`
}
