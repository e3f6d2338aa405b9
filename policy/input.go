package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/byteness/sentinel-authz/device"
	"github.com/byteness/sentinel-authz/entitlement"
	"github.com/byteness/sentinel-authz/session"
)

// Input is the fixed schema handed to the policy engine (C7's output, C6's
// input): {tenant:{id, plan, throttled}, subject:{id, mfa_verified},
// risk:{riskLevel}, resource, action, entitlements?, device?}.
type Input struct {
	Tenant       TenantInput                      `json:"tenant"`
	Subject      SubjectInput                      `json:"subject"`
	Risk         RiskInput                          `json:"risk"`
	Resource     string                             `json:"resource"`
	Action       string                             `json:"action"`
	Entitlements []entitlement.PolicyProjection     `json:"entitlements,omitempty"`

	// Device is the caller's self-reported posture, nil when the request
	// carried none. Evaluated by a rule's DeviceCondition (policy/device.go).
	Device *device.DevicePosture `json:"device,omitempty"`
}

// TenantInput is the tenant-scoped slice of Input.
type TenantInput struct {
	ID         string `json:"id"`
	Plan       string `json:"plan"`
	Throttled  bool   `json:"throttled"`
}

// SubjectInput is the subject-scoped slice of Input.
type SubjectInput struct {
	ID          string `json:"id"`
	MFAVerified bool   `json:"mfa_verified"`
}

// RiskInput is the risk-scoped slice of Input.
type RiskInput struct {
	RiskLevel session.RiskLevel `json:"riskLevel"`
}

// BuildInput assembles a policy Input from the session, tenant plan state,
// the subject's active entitlement projections (C7), and the caller's
// device posture, if any.
func BuildInput(sess *session.Session, plan string, throttled bool, resource, action string, entitlements []entitlement.PolicyProjection, posture *device.DevicePosture) Input {
	return Input{
		Tenant: TenantInput{
			ID:        sess.TenantID,
			Plan:      plan,
			Throttled: throttled,
		},
		Subject: SubjectInput{
			ID:          sess.SubjectID,
			MFAVerified: sess.MFAVerified,
		},
		Risk: RiskInput{
			RiskLevel: sess.RiskLevel,
		},
		Resource:     resource,
		Action:       action,
		Entitlements: entitlements,
		Device:       posture,
	}
}

// Canonical serializes the input deterministically: sorted object keys,
// stable field order, no insignificant whitespace. Go's encoding/json
// already sorts map keys and walks struct fields in declaration order, so a
// plain Marshal of a value built only from structs, slices, and scalars
// (never maps with unstable iteration) is already canonical; this function
// exists as the single documented seam other packages call instead of
// json.Marshal directly, so canonicality stays enforced in one place.
func Canonical(input Input) ([]byte, error) {
	sortedEntitlements := make([]entitlement.PolicyProjection, len(input.Entitlements))
	copy(sortedEntitlements, input.Entitlements)
	sort.Slice(sortedEntitlements, func(i, j int) bool {
		if sortedEntitlements[i].ResourceType != sortedEntitlements[j].ResourceType {
			return sortedEntitlements[i].ResourceType < sortedEntitlements[j].ResourceType
		}
		return sortedEntitlements[i].ResourceID < sortedEntitlements[j].ResourceID
	})
	input.Entitlements = sortedEntitlements
	return json.Marshal(input)
}

// Fingerprint returns the hex-encoded SHA-256 digest of the input's
// canonical serialization, stable across hosts and processes, used as the
// decision cache key and as the audit record's policyInputHash.
func Fingerprint(input Input) (string, error) {
	data, err := Canonical(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
