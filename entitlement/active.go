package entitlement

import (
	"context"
	"time"
)

// GetActiveForSubject returns only entitlements with status=ACTIVE and
// now within [validFrom, validUntil ?? +inf).
func GetActiveForSubject(ctx context.Context, store Store, subjectID string, now time.Time) ([]*Entitlement, error) {
	all, err := store.ListBySubject(ctx, subjectID, MaxQueryLimit)
	if err != nil {
		return nil, err
	}

	active := make([]*Entitlement, 0, len(all))
	for _, e := range all {
		if e.IsActiveAt(now) {
			active = append(active, e)
		}
	}
	return active, nil
}

// PolicyProjection is the compact per-entitlement view consumed by
// PolicyInputBuilder.
type PolicyProjection struct {
	ResourceType string   `json:"resourceType"`
	ResourceID   string   `json:"resourceId"`
	Scopes       []string `json:"scopes"`
}

// BuildPolicyInput returns a compact projection of a subject's active
// entitlements for inclusion in a policy input.
func BuildPolicyInput(ctx context.Context, store Store, subjectID string, now time.Time) ([]PolicyProjection, error) {
	active, err := GetActiveForSubject(ctx, store, subjectID, now)
	if err != nil {
		return nil, err
	}

	projections := make([]PolicyProjection, 0, len(active))
	for _, e := range active {
		projections = append(projections, PolicyProjection{
			ResourceType: e.ResourceType,
			ResourceID:   e.ResourceID,
			Scopes:       e.Scopes,
		})
	}
	return projections, nil
}
