package core

import "time"

// Challenge is an outstanding proof-of-personhood challenge.
type Challenge struct {
	SessionID string    // Unique identifier for this challenge exchange
	Bytes     []byte    // Random value the caller must incorporate into its proofs
	Hex       string    // Hex encoding of Bytes, as handed to the caller
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
	Attempts  int       // Verification attempts made against this challenge
}

// Expired reports whether the challenge is past its validity window.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Requirements states what a caller must submit alongside a challenge.
type Requirements struct {
	ProofOfWorkDifficulty int  `json:"proof_of_work_difficulty"`
	IdentityRequired      bool `json:"identity_required"`
	ProofOfWorkRequired   bool `json:"proof_of_work_required"`
}

// ChallengeGrant is the public payload returned by RequestAccess.
type ChallengeGrant struct {
	SessionID    string       `json:"session_id"`
	Challenge    string       `json:"challenge"`
	ExpiresAt    time.Time    `json:"expires_at"`
	Requirements Requirements `json:"requirements"`
}
