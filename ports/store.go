package ports

import (
	"context"
	"time"

	"github.com/layer-3/popgate/core"
)

// ChallengeStore holds outstanding challenges keyed by session id. All
// mutation goes through these single-writer operations; callers never
// mutate a stored Challenge in place.
type ChallengeStore interface {
	// PutChallenge registers a fresh challenge.
	PutChallenge(ctx context.Context, ch *core.Challenge) error

	// GetChallenge returns a snapshot, or core.ErrNotFound.
	GetChallenge(ctx context.Context, sessionID string) (*core.Challenge, error)

	// BumpAttempts atomically increments the attempt counter and returns
	// the post-increment snapshot, or core.ErrNotFound.
	BumpAttempts(ctx context.Context, sessionID string) (*core.Challenge, error)

	// TakeChallenge atomically removes and returns the challenge, or
	// core.ErrNotFound if it was already consumed. Of two racing
	// verifications, exactly one take succeeds.
	TakeChallenge(ctx context.Context, sessionID string) (*core.Challenge, error)

	// DeleteChallenge removes the challenge if present.
	DeleteChallenge(ctx context.Context, sessionID string) error

	// CountChallenges returns the number of outstanding challenges.
	CountChallenges(ctx context.Context) (int, error)

	// SweepChallenges removes every challenge expired at now and returns
	// how many were removed.
	SweepChallenges(ctx context.Context, now time.Time) (int, error)
}

// SessionStore holds issued sessions keyed by access token.
type SessionStore interface {
	// PutSession registers a freshly minted session.
	PutSession(ctx context.Context, s *core.Session) error

	// GetSession returns a snapshot, or core.ErrNotFound.
	GetSession(ctx context.Context, accessToken string) (*core.Session, error)

	// AdmitSession atomically increments the request counter, stamps the
	// last-request time, and returns the updated snapshot, or
	// core.ErrNotFound if the session was evicted in the meantime.
	AdmitSession(ctx context.Context, accessToken string, now time.Time) (*core.Session, error)

	// DeleteSession removes the session if present.
	DeleteSession(ctx context.Context, accessToken string) error

	// RevokeIdentity removes every live session owned by the identity and
	// returns how many were removed.
	RevokeIdentity(ctx context.Context, identityID string) (int, error)

	// CountSessions returns the number of live sessions.
	CountSessions(ctx context.Context) (int, error)

	// CountSessionsByTier returns live session counts grouped by tier.
	CountSessionsByTier(ctx context.Context) (map[core.Tier]int, error)

	// TotalRequests returns the cumulative admitted-request count, across
	// live and already-evicted sessions.
	TotalRequests(ctx context.Context) (int64, error)

	// SweepSessions removes every session expired at now and returns how
	// many were removed.
	SweepSessions(ctx context.Context, now time.Time) (int, error)
}

// Blacklist tracks banned identities.
type Blacklist interface {
	// AddToBlacklist bans an identity with a reason; idempotent.
	AddToBlacklist(ctx context.Context, identityID, reason string) error

	// IsBlacklisted checks membership.
	IsBlacklisted(ctx context.Context, identityID string) (bool, error)

	// RemoveFromBlacklist lifts a ban; reports whether an entry existed.
	RemoveFromBlacklist(ctx context.Context, identityID string) (bool, error)

	// CountBlacklisted returns the number of banned identities.
	CountBlacklisted(ctx context.Context) (int, error)
}

// ReputationLedger records the last server-computed score per identity.
// A ledger entry always overrides caller-supplied carried reputation.
type ReputationLedger interface {
	// LastScore returns the most recent recorded score, or core.ErrNotFound
	// for identities never seen.
	LastScore(ctx context.Context, identityID string) (int, error)

	// RecordScore stores the score computed on a successful verification.
	RecordScore(ctx context.Context, identityID string, score int) error
}
