package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/popgate/core"
)

// MemoryStore is an in-memory implementation of the challenge, session,
// blacklist, and reputation registries. A single mutex covers all four so
// that cross-registry operations (revoke-on-ban, blacklist-then-admit)
// are linearizable within one process.
type MemoryStore struct {
	mu         sync.RWMutex
	challenges map[string]core.Challenge // keyed by session id
	sessions   map[string]core.Session   // keyed by access token
	byIdentity map[string]map[string]struct{}
	blacklist  map[string]string // identity id -> reason
	scores     map[string]int    // identity id -> last recorded score

	totalRequests int64 // survives session eviction
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges: make(map[string]core.Challenge),
		sessions:   make(map[string]core.Session),
		byIdentity: make(map[string]map[string]struct{}),
		blacklist:  make(map[string]string),
		scores:     make(map[string]int),
	}
}

// PutChallenge registers a fresh challenge.
func (s *MemoryStore) PutChallenge(ctx context.Context, ch *core.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenges[ch.SessionID] = *ch
	return nil
}

// GetChallenge returns a snapshot of the challenge.
func (s *MemoryStore) GetChallenge(ctx context.Context, sessionID string) (*core.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.challenges[sessionID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &ch, nil
}

// BumpAttempts increments the attempt counter atomically.
func (s *MemoryStore) BumpAttempts(ctx context.Context, sessionID string) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[sessionID]
	if !ok {
		return nil, core.ErrNotFound
	}
	ch.Attempts++
	s.challenges[sessionID] = ch
	return &ch, nil
}

// TakeChallenge removes and returns the challenge in one step.
func (s *MemoryStore) TakeChallenge(ctx context.Context, sessionID string) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[sessionID]
	if !ok {
		return nil, core.ErrNotFound
	}
	delete(s.challenges, sessionID)
	return &ch, nil
}

// DeleteChallenge removes the challenge if present.
func (s *MemoryStore) DeleteChallenge(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.challenges, sessionID)
	return nil
}

// CountChallenges returns the number of outstanding challenges.
func (s *MemoryStore) CountChallenges(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.challenges), nil
}

// SweepChallenges removes expired challenges.
func (s *MemoryStore) SweepChallenges(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, ch := range s.challenges {
		if now.After(ch.ExpiresAt) {
			delete(s.challenges, id)
			removed++
		}
	}
	return removed, nil
}

// PutSession registers a session and indexes it by identity.
func (s *MemoryStore) PutSession(ctx context.Context, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.AccessToken] = *session
	tokens, ok := s.byIdentity[session.IdentityID]
	if !ok {
		tokens = make(map[string]struct{})
		s.byIdentity[session.IdentityID] = tokens
	}
	tokens[session.AccessToken] = struct{}{}
	return nil
}

// GetSession returns a snapshot of the session.
func (s *MemoryStore) GetSession(ctx context.Context, accessToken string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[accessToken]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &session, nil
}

// AdmitSession bumps the request counter and stamps the request time.
func (s *MemoryStore) AdmitSession(ctx context.Context, accessToken string, now time.Time) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[accessToken]
	if !ok {
		return nil, core.ErrNotFound
	}
	session.RequestCount++
	session.LastRequestAt = now
	s.sessions[accessToken] = session
	s.totalRequests++
	return &session, nil
}

// DeleteSession removes the session if present.
func (s *MemoryStore) DeleteSession(ctx context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeSessionLocked(accessToken)
	return nil
}

// RevokeIdentity removes every session owned by the identity.
func (s *MemoryStore) RevokeIdentity(ctx context.Context, identityID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := s.byIdentity[identityID]
	revoked := 0
	for token := range tokens {
		if _, ok := s.sessions[token]; ok {
			revoked++
		}
		s.removeSessionLocked(token)
	}
	return revoked, nil
}

func (s *MemoryStore) removeSessionLocked(accessToken string) {
	session, ok := s.sessions[accessToken]
	if !ok {
		return
	}
	delete(s.sessions, accessToken)
	if tokens, ok := s.byIdentity[session.IdentityID]; ok {
		delete(tokens, accessToken)
		if len(tokens) == 0 {
			delete(s.byIdentity, session.IdentityID)
		}
	}
}

// CountSessions returns the number of live sessions.
func (s *MemoryStore) CountSessions(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions), nil
}

// CountSessionsByTier returns live session counts grouped by tier.
func (s *MemoryStore) CountSessionsByTier(ctx context.Context) (map[core.Tier]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTier := make(map[core.Tier]int)
	for _, session := range s.sessions {
		byTier[session.Tier]++
	}
	return byTier, nil
}

// TotalRequests returns the cumulative admitted-request count.
func (s *MemoryStore) TotalRequests(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.totalRequests, nil
}

// SweepSessions removes expired sessions.
func (s *MemoryStore) SweepSessions(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			s.removeSessionLocked(token)
			removed++
		}
	}
	return removed, nil
}

// AddToBlacklist bans an identity.
func (s *MemoryStore) AddToBlacklist(ctx context.Context, identityID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blacklist[identityID] = reason
	return nil
}

// IsBlacklisted checks blacklist membership.
func (s *MemoryStore) IsBlacklisted(ctx context.Context, identityID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, banned := s.blacklist[identityID]
	return banned, nil
}

// RemoveFromBlacklist lifts a ban.
func (s *MemoryStore) RemoveFromBlacklist(ctx context.Context, identityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.blacklist[identityID]
	delete(s.blacklist, identityID)
	return existed, nil
}

// CountBlacklisted returns the number of banned identities.
func (s *MemoryStore) CountBlacklisted(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.blacklist), nil
}

// LastScore returns the last recorded score for an identity.
func (s *MemoryStore) LastScore(ctx context.Context, identityID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	score, ok := s.scores[identityID]
	if !ok {
		return 0, core.ErrNotFound
	}
	return score, nil
}

// RecordScore stores the score computed on a successful verification.
func (s *MemoryStore) RecordScore(ctx context.Context, identityID string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scores[identityID] = score
	return nil
}
