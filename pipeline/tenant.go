package pipeline

import "context"

// StaticTenantLookup resolves tenant plan/throttled state from a
// preloaded map, keyed by tenant id. Missing entries resolve to the default
// TenantInfo given to NewStaticTenantLookup rather than an error, since an
// unconfigured tenant is a deployment gap, not a pipeline fault.
type StaticTenantLookup struct {
	tenants map[string]TenantInfo
	def     TenantInfo
}

// NewStaticTenantLookup builds a lookup from a preloaded tenant map and a
// default for tenants it doesn't contain.
func NewStaticTenantLookup(tenants map[string]TenantInfo, def TenantInfo) *StaticTenantLookup {
	if tenants == nil {
		tenants = map[string]TenantInfo{}
	}
	return &StaticTenantLookup{tenants: tenants, def: def}
}

// Lookup implements TenantLookup.
func (s *StaticTenantLookup) Lookup(ctx context.Context, tenantID string) (TenantInfo, error) {
	if info, ok := s.tenants[tenantID]; ok {
		return info, nil
	}
	return s.def, nil
}

var _ TenantLookup = (*StaticTenantLookup)(nil)
