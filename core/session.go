package core

import "time"

// Session represents a verified identity holding an access token.
type Session struct {
	IdentityID    string     // Verified identity that owns the session
	PublicKey     []byte     // Public key recovered during verification
	AccessToken   string     // Opaque token presented on subsequent requests
	Reputation    Reputation // Score and per-factor breakdown
	Tier          Tier
	Limit         RateLimit
	IssuedAt      time.Time
	ExpiresAt     time.Time // Never extended implicitly; renewal needs a fresh challenge
	RequestCount  int64     // Cumulative over the session lifetime, not windowed
	LastRequestAt time.Time
}

// Expired reports whether the session is past its validity window.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Stats is a point-in-time snapshot of the gateway's registries.
type Stats struct {
	ActiveSessions   int          `json:"active_sessions"`
	ActiveChallenges int          `json:"active_challenges"`
	BlacklistedCount int          `json:"blacklisted_count"`
	SessionsByTier   map[Tier]int `json:"sessions_by_tier"`
	TotalRequests    int64        `json:"total_requests"`
}
