package errors

// Suggestions contains default fix suggestions for each error code.
var Suggestions = map[string]string{
	ErrCodeSessionStoreUnavailable: "The session store is unreachable. Retry the request; if this persists, check the Redis connection.",
	ErrCodeSessionNotFound:         "No session exists for the supplied access token. Re-authenticate to obtain a new session.",
	ErrCodeSessionExpired:          "The session has passed its expiry. Re-authenticate to obtain a new session.",
	ErrCodeSessionRevoked:          "The session was revoked. Re-authenticate to obtain a new session.",
	ErrCodeDeviceMismatch:          "The request's device fingerprint does not match the session's bound device. Re-authenticate from this device.",
	ErrCodeRiskCritical:            "The continuous risk evaluation rated this request critical. The session has been killed; re-authenticate.",
	ErrCodeRateLimited:             "Too many requests for the current risk tier. Wait and retry.",
	ErrCodePolicyEngineUnavailable: "The policy engine could not be reached and no cached decision was available.",
	ErrCodeReplayDetected:          "This request nonce was already used. Retries must use a fresh nonce.",
	ErrCodeAuditUnavailable:        "The audit log could not accept the record synchronously; it was queued for durable retry.",
}

// GetSuggestion returns the default suggestion for an error code.
// Returns empty string if no suggestion is defined.
func GetSuggestion(code string) string {
	return Suggestions[code]
}
