package errors

import (
	"strings"
	"testing"
)

func TestGetSuggestion(t *testing.T) {
	tests := []struct {
		code    string
		wantHas string
	}{
		{ErrCodeSessionStoreUnavailable, "redis"},
		{ErrCodeSessionNotFound, "re-authenticate"},
		{ErrCodeSessionExpired, "re-authenticate"},
		{ErrCodeSessionRevoked, "re-authenticate"},
		{ErrCodeDeviceMismatch, "device"},
		{ErrCodeRiskCritical, "critical"},
		{ErrCodeRateLimited, "wait"},
		{ErrCodePolicyEngineUnavailable, "policy engine"},
		{ErrCodeReplayDetected, "nonce"},
		{ErrCodeAuditUnavailable, "queued"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := GetSuggestion(tt.code)
			if got == "" {
				t.Errorf("GetSuggestion(%q) = empty string", tt.code)
			}
			if !strings.Contains(strings.ToLower(got), strings.ToLower(tt.wantHas)) {
				t.Errorf("GetSuggestion(%q) = %q, want to contain %q", tt.code, got, tt.wantHas)
			}
		})
	}
}

func TestGetSuggestion_UnknownCode(t *testing.T) {
	got := GetSuggestion("UNKNOWN_CODE")
	if got != "" {
		t.Errorf("GetSuggestion(UNKNOWN_CODE) = %q, want empty string", got)
	}
}

// Test all error codes have suggestions defined
func TestAllErrorCodesHaveSuggestions(t *testing.T) {
	codes := []string{
		ErrCodeSessionStoreUnavailable,
		ErrCodeSessionNotFound,
		ErrCodeSessionExpired,
		ErrCodeSessionRevoked,
		ErrCodeDeviceMismatch,
		ErrCodeRiskCritical,
		ErrCodeRateLimited,
		ErrCodePolicyEngineUnavailable,
		ErrCodeReplayDetected,
		ErrCodeAuditUnavailable,
	}

	for _, code := range codes {
		t.Run(code, func(t *testing.T) {
			suggestion := GetSuggestion(code)
			if suggestion == "" {
				t.Errorf("No suggestion defined for error code %q", code)
			}
		})
	}
}
