package core

import "time"

// DenyReason classifies an expected, recoverable verification or admission
// failure. These are results, not errors; fatal conditions are returned as
// Go errors instead (see errors.go).
type DenyReason string

const (
	DenyInvalidSession  DenyReason = "invalid_session"
	DenySessionExpired  DenyReason = "session_expired"
	DenyTooManyAttempts DenyReason = "too_many_attempts"
	DenyBlacklisted     DenyReason = "blacklisted"
	DenyInvalidAuth     DenyReason = "invalid_auth"
	DenyInvalidPoW      DenyReason = "invalid_pow"
	DenyMissingPoW      DenyReason = "missing_pow"
	DenyInvalidToken    DenyReason = "invalid_token"
)

// VerificationResult is the outcome of VerifyPersonhood. When Verified is
// false, Reason carries the deny code and all other fields are zero.
type VerificationResult struct {
	Verified    bool        `json:"verified"`
	Reason      DenyReason  `json:"reason,omitempty"`
	Detail      string      `json:"detail,omitempty"` // prover-supplied reason for invalid_auth
	AccessToken string      `json:"access_token,omitempty"`
	Reputation  *Reputation `json:"reputation,omitempty"`
	Tier        Tier        `json:"tier,omitempty"`
	Limit       *RateLimit  `json:"limit,omitempty"`
	ExpiresAt   time.Time   `json:"expires_at,omitzero"`
}

// Deny builds a failed VerificationResult.
func Deny(reason DenyReason) *VerificationResult {
	return &VerificationResult{Reason: reason}
}

// AdmissionResult is the outcome of VerifyRequest. The gateway returns the
// tier's limits; enforcing them against hourly/daily windows is the
// caller's responsibility.
type AdmissionResult struct {
	Allowed       bool       `json:"allowed"`
	Reason        DenyReason `json:"reason,omitempty"`
	IdentityID    string     `json:"identity_id,omitempty"`
	Tier          Tier       `json:"tier,omitempty"`
	Limit         *RateLimit `json:"limit,omitempty"`
	RequestCount  int64      `json:"request_count,omitempty"`
	LastRequestAt time.Time  `json:"last_request_at,omitzero"`
}
