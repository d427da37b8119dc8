package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/popgate/core"
)

func testChallenge(sessionID string, ttl time.Duration) *core.Challenge {
	now := time.Now()
	return &core.Challenge{
		SessionID: sessionID,
		Bytes:     []byte(sessionID),
		Hex:       "deadbeef",
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func testSession(token, identity string, tier core.Tier, ttl time.Duration) *core.Session {
	now := time.Now()
	return &core.Session{
		IdentityID:  identity,
		AccessToken: token,
		Tier:        tier,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
	}
}

func TestChallengeLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetChallenge(ctx, "missing")
	require.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.PutChallenge(ctx, testChallenge("s1", time.Minute)))

	ch, err := s.GetChallenge(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", ch.SessionID)
	assert.Zero(t, ch.Attempts)

	n, err := s.CountChallenges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.DeleteChallenge(ctx, "s1"))
	_, err = s.GetChallenge(ctx, "s1")
	require.ErrorIs(t, err, core.ErrNotFound)

	// Deleting again is a no-op.
	require.NoError(t, s.DeleteChallenge(ctx, "s1"))
}

func TestBumpAttempts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.BumpAttempts(ctx, "missing")
	require.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.PutChallenge(ctx, testChallenge("s1", time.Minute)))
	for want := 1; want <= 4; want++ {
		ch, err := s.BumpAttempts(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, want, ch.Attempts)
	}
}

func TestTakeChallengeOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutChallenge(ctx, testChallenge("s1", time.Minute)))

	ch, err := s.TakeChallenge(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", ch.SessionID)

	_, err = s.TakeChallenge(ctx, "s1")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestTakeChallengeConcurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutChallenge(ctx, testChallenge("s1", time.Minute)))

	const racers = 32
	var wg sync.WaitGroup
	won := make(chan struct{}, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.TakeChallenge(ctx, "s1"); err == nil {
				won <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(won)

	assert.Len(t, won, 1, "exactly one taker may win")
}

func TestSweepChallenges(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutChallenge(ctx, testChallenge("live", time.Hour)))
	require.NoError(t, s.PutChallenge(ctx, testChallenge("dead1", -time.Minute)))
	require.NoError(t, s.PutChallenge(ctx, testChallenge("dead2", -time.Second)))

	removed, err := s.SweepChallenges(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = s.GetChallenge(ctx, "live")
	require.NoError(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetSession(ctx, "missing")
	require.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.PutSession(ctx, testSession("tok1", "alice", core.TierTrusted, time.Hour)))

	session, err := s.GetSession(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, "alice", session.IdentityID)
	assert.Zero(t, session.RequestCount)

	require.NoError(t, s.DeleteSession(ctx, "tok1"))
	_, err = s.GetSession(ctx, "tok1")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestAdmitSessionCounts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutSession(ctx, testSession("tok1", "alice", core.TierNew, time.Hour)))

	stamp := time.Now()
	for want := int64(1); want <= 3; want++ {
		session, err := s.AdmitSession(ctx, "tok1", stamp)
		require.NoError(t, err)
		assert.Equal(t, want, session.RequestCount)
		assert.True(t, session.LastRequestAt.Equal(stamp))
	}

	_, err := s.AdmitSession(ctx, "missing", stamp)
	require.ErrorIs(t, err, core.ErrNotFound)

	total, err := s.TotalRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestAdmitSessionConcurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutSession(ctx, testSession("tok1", "alice", core.TierNew, time.Hour)))

	const admits = 50
	var wg sync.WaitGroup
	for i := 0; i < admits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AdmitSession(ctx, "tok1", time.Now())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	session, err := s.GetSession(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, int64(admits), session.RequestCount)

	total, err := s.TotalRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(admits), total)
}

func TestTotalRequestsSurvivesEviction(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutSession(ctx, testSession("tok1", "alice", core.TierNew, time.Hour)))
	_, err := s.AdmitSession(ctx, "tok1", time.Now())
	require.NoError(t, err)
	_, err = s.AdmitSession(ctx, "tok1", time.Now())
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession(ctx, "tok1"))

	total, err := s.TotalRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestRevokeIdentity(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutSession(ctx, testSession("a1", "alice", core.TierNew, time.Hour)))
	require.NoError(t, s.PutSession(ctx, testSession("a2", "alice", core.TierNew, time.Hour)))
	require.NoError(t, s.PutSession(ctx, testSession("b1", "bob", core.TierNew, time.Hour)))

	revoked, err := s.RevokeIdentity(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, revoked)

	_, err = s.GetSession(ctx, "a1")
	require.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetSession(ctx, "a2")
	require.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetSession(ctx, "b1")
	require.NoError(t, err)

	// Unknown identity revokes nothing.
	revoked, err = s.RevokeIdentity(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, revoked)
}

func TestCountSessionsByTier(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutSession(ctx, testSession("t1", "a", core.TierNew, time.Hour)))
	require.NoError(t, s.PutSession(ctx, testSession("t2", "b", core.TierNew, time.Hour)))
	require.NoError(t, s.PutSession(ctx, testSession("t3", "c", core.TierVerified, time.Hour)))

	byTier, err := s.CountSessionsByTier(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, byTier[core.TierNew])
	assert.Equal(t, 1, byTier[core.TierVerified])
	assert.Zero(t, byTier[core.TierTrusted])
}

func TestSweepSessions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutSession(ctx, testSession("live", "alice", core.TierNew, time.Hour)))
	require.NoError(t, s.PutSession(ctx, testSession("dead", "alice", core.TierNew, -time.Minute)))

	removed, err := s.SweepSessions(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	// The identity index was maintained: revoking finds only the live one.
	revoked, err := s.RevokeIdentity(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, revoked)
}

func TestBlacklistOps(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	banned, err := s.IsBlacklisted(ctx, "mallory")
	require.NoError(t, err)
	assert.False(t, banned)

	require.NoError(t, s.AddToBlacklist(ctx, "mallory", "too many attempts"))

	banned, err = s.IsBlacklisted(ctx, "mallory")
	require.NoError(t, err)
	assert.True(t, banned)

	n, err := s.CountBlacklisted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	removed, err := s.RemoveFromBlacklist(ctx, "mallory")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.RemoveFromBlacklist(ctx, "mallory")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestReputationLedger(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.LastScore(ctx, "alice")
	require.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.RecordScore(ctx, "alice", 40))
	score, err := s.LastScore(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 40, score)

	require.NoError(t, s.RecordScore(ctx, "alice", 55))
	score, err = s.LastScore(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 55, score)
}

func TestMixedConcurrentAccess(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			require.NoError(t, s.PutChallenge(ctx, testChallenge(id, time.Minute)))
			_, err := s.BumpAttempts(ctx, id)
			assert.NoError(t, err)
			require.NoError(t, s.PutSession(ctx, testSession("tok"+id, "id"+id, core.TierNew, time.Hour)))
			_, err = s.AdmitSession(ctx, "tok"+id, time.Now())
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	challenges, err := s.CountChallenges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, challenges)

	sessions, err := s.CountSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, sessions)

	total, err := s.TotalRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20), total)
}
