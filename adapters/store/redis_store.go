package store

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/popgate/core"
)

// RedisStore is a Redis implementation of the challenge, session,
// blacklist, and reputation registries. Every read-increment or
// compare-and-delete path runs as a Lua script so that the atomicity
// guarantees hold across processes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "popgate:",
	}
}

var bumpAttemptsScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then return false end
local ch = cjson.decode(raw)
ch["attempts"] = (ch["attempts"] or 0) + 1
local out = cjson.encode(ch)
redis.call("SET", KEYS[1], out, "KEEPTTL")
return out
`)

var takeScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then return false end
redis.call("DEL", KEYS[1])
return raw
`)

var admitScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then return false end
local s = cjson.decode(raw)
s["request_count"] = (s["request_count"] or 0) + 1
s["last_request_at"] = tonumber(ARGV[1])
local out = cjson.encode(s)
redis.call("SET", KEYS[1], out, "KEEPTTL")
redis.call("INCR", KEYS[2])
return out
`)

var revokeScript = redis.NewScript(`
local tokens = redis.call("SMEMBERS", KEYS[1])
local n = 0
for _, t in ipairs(tokens) do
	n = n + redis.call("DEL", ARGV[1] .. t)
end
redis.call("DEL", KEYS[1])
return n
`)

// Wire shapes. Timestamps are unix milliseconds: cjson represents numbers
// as doubles, so nanosecond precision would silently lose bits.

type redisChallenge struct {
	SessionID string `json:"session_id"`
	Bytes     string `json:"bytes"`
	Hex       string `json:"hex"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
	Attempts  int    `json:"attempts"`
}

type redisSession struct {
	IdentityID    string        `json:"identity_id"`
	PublicKey     string        `json:"public_key"`
	AccessToken   string        `json:"access_token"`
	Score         int           `json:"score"`
	Factors       []core.Factor `json:"factors"`
	Tier          string        `json:"tier"`
	PerHour       int64         `json:"per_hour"`
	PerDay        int64         `json:"per_day"`
	IssuedAt      int64         `json:"issued_at"`
	ExpiresAt     int64         `json:"expires_at"`
	RequestCount  int64         `json:"request_count"`
	LastRequestAt int64         `json:"last_request_at"`
}

func (s *RedisStore) challengeKey(sessionID string) string {
	return s.prefix + "challenge:" + sessionID
}

func (s *RedisStore) sessionKey(token string) string {
	return s.prefix + "session:" + token
}

func (s *RedisStore) identityKey(identityID string) string {
	return s.prefix + "identity:" + identityID
}

func (s *RedisStore) blacklistKey() string    { return s.prefix + "blacklist" }
func (s *RedisStore) reputationKey() string   { return s.prefix + "reputation" }
func (s *RedisStore) requestCountKey() string { return s.prefix + "total_requests" }

func encodeChallenge(ch *core.Challenge) ([]byte, error) {
	return json.Marshal(redisChallenge{
		SessionID: ch.SessionID,
		Bytes:     hex.EncodeToString(ch.Bytes),
		Hex:       ch.Hex,
		IssuedAt:  ch.IssuedAt.UnixMilli(),
		ExpiresAt: ch.ExpiresAt.UnixMilli(),
		Attempts:  ch.Attempts,
	})
}

func decodeChallenge(raw string) (*core.Challenge, error) {
	var rc redisChallenge
	if err := json.Unmarshal([]byte(raw), &rc); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	b, err := hex.DecodeString(rc.Bytes)
	if err != nil {
		return nil, fmt.Errorf("decode challenge bytes: %w", err)
	}
	return &core.Challenge{
		SessionID: rc.SessionID,
		Bytes:     b,
		Hex:       rc.Hex,
		IssuedAt:  time.UnixMilli(rc.IssuedAt),
		ExpiresAt: time.UnixMilli(rc.ExpiresAt),
		Attempts:  rc.Attempts,
	}, nil
}

func encodeSession(session *core.Session) ([]byte, error) {
	rs := redisSession{
		IdentityID:   session.IdentityID,
		PublicKey:    hex.EncodeToString(session.PublicKey),
		AccessToken:  session.AccessToken,
		Score:        session.Reputation.Score,
		Factors:      session.Reputation.Factors,
		Tier:         string(session.Tier),
		PerHour:      session.Limit.PerHour,
		PerDay:       session.Limit.PerDay,
		IssuedAt:     session.IssuedAt.UnixMilli(),
		ExpiresAt:    session.ExpiresAt.UnixMilli(),
		RequestCount: session.RequestCount,
	}
	if !session.LastRequestAt.IsZero() {
		rs.LastRequestAt = session.LastRequestAt.UnixMilli()
	}
	return json.Marshal(rs)
}

func decodeSession(raw string) (*core.Session, error) {
	var rs redisSession
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	pk, err := hex.DecodeString(rs.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	session := &core.Session{
		IdentityID:   rs.IdentityID,
		PublicKey:    pk,
		AccessToken:  rs.AccessToken,
		Reputation:   core.Reputation{Score: rs.Score, Factors: rs.Factors},
		Tier:         core.Tier(rs.Tier),
		Limit:        core.RateLimit{PerHour: rs.PerHour, PerDay: rs.PerDay},
		IssuedAt:     time.UnixMilli(rs.IssuedAt),
		ExpiresAt:    time.UnixMilli(rs.ExpiresAt),
		RequestCount: rs.RequestCount,
	}
	if rs.LastRequestAt != 0 {
		session.LastRequestAt = time.UnixMilli(rs.LastRequestAt)
	}
	return session, nil
}

// PutChallenge registers a challenge with a TTL matching its expiry.
func (s *RedisStore) PutChallenge(ctx context.Context, ch *core.Challenge) error {
	raw, err := encodeChallenge(ch)
	if err != nil {
		return err
	}
	ttl := time.Until(ch.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := s.client.Set(ctx, s.challengeKey(ch.SessionID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

// GetChallenge returns a snapshot of the challenge.
func (s *RedisStore) GetChallenge(ctx context.Context, sessionID string) (*core.Challenge, error) {
	raw, err := s.client.Get(ctx, s.challengeKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	return decodeChallenge(raw)
}

// BumpAttempts increments the attempt counter atomically.
func (s *RedisStore) BumpAttempts(ctx context.Context, sessionID string) (*core.Challenge, error) {
	res, err := bumpAttemptsScript.Run(ctx, s.client, []string{s.challengeKey(sessionID)}).Result()
	if err == redis.Nil {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bump attempts: %w", err)
	}
	raw, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("bump attempts: unexpected reply %T", res)
	}
	return decodeChallenge(raw)
}

// TakeChallenge removes and returns the challenge in one step.
func (s *RedisStore) TakeChallenge(ctx context.Context, sessionID string) (*core.Challenge, error) {
	res, err := takeScript.Run(ctx, s.client, []string{s.challengeKey(sessionID)}).Result()
	if err == redis.Nil {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("take challenge: %w", err)
	}
	raw, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("take challenge: unexpected reply %T", res)
	}
	return decodeChallenge(raw)
}

// DeleteChallenge removes the challenge if present.
func (s *RedisStore) DeleteChallenge(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.challengeKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

// CountChallenges returns the number of outstanding challenges.
func (s *RedisStore) CountChallenges(ctx context.Context) (int, error) {
	return s.countKeys(ctx, s.prefix+"challenge:*")
}

// SweepChallenges removes challenges whose recorded expiry has passed.
// Redis TTLs already evict on time; the sweep covers clock drift between
// the gateway and Redis.
func (s *RedisStore) SweepChallenges(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"challenge:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		ch, err := decodeChallenge(raw)
		if err != nil || !ch.Expired(now) {
			continue
		}
		if n, _ := s.client.Del(ctx, key).Result(); n > 0 {
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("sweep challenges: %w", err)
	}
	return removed, nil
}

// PutSession registers a session and indexes it by identity.
func (s *RedisStore) PutSession(ctx context.Context, session *core.Session) error {
	raw, err := encodeSession(session)
	if err != nil {
		return err
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sessionKey(session.AccessToken), raw, ttl)
	pipe.SAdd(ctx, s.identityKey(session.IdentityID), session.AccessToken)
	pipe.Expire(ctx, s.identityKey(session.IdentityID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// GetSession returns a snapshot of the session.
func (s *RedisStore) GetSession(ctx context.Context, accessToken string) (*core.Session, error) {
	raw, err := s.client.Get(ctx, s.sessionKey(accessToken)).Result()
	if err == redis.Nil {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return decodeSession(raw)
}

// AdmitSession bumps the request counter and stamps the request time.
func (s *RedisStore) AdmitSession(ctx context.Context, accessToken string, now time.Time) (*core.Session, error) {
	res, err := admitScript.Run(ctx, s.client,
		[]string{s.sessionKey(accessToken), s.requestCountKey()},
		strconv.FormatInt(now.UnixMilli(), 10),
	).Result()
	if err == redis.Nil {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("admit session: %w", err)
	}
	raw, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("admit session: unexpected reply %T", res)
	}
	return decodeSession(raw)
}

// DeleteSession removes the session if present.
func (s *RedisStore) DeleteSession(ctx context.Context, accessToken string) error {
	session, err := s.GetSession(ctx, accessToken)
	if err == nil {
		s.client.SRem(ctx, s.identityKey(session.IdentityID), accessToken)
	}
	if err := s.client.Del(ctx, s.sessionKey(accessToken)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// RevokeIdentity removes every session owned by the identity.
func (s *RedisStore) RevokeIdentity(ctx context.Context, identityID string) (int, error) {
	res, err := revokeScript.Run(ctx, s.client,
		[]string{s.identityKey(identityID)},
		s.prefix+"session:",
	).Int()
	if err != nil {
		return 0, fmt.Errorf("revoke identity: %w", err)
	}
	return res, nil
}

// CountSessions returns the number of live sessions.
func (s *RedisStore) CountSessions(ctx context.Context) (int, error) {
	return s.countKeys(ctx, s.prefix+"session:*")
}

// CountSessionsByTier returns live session counts grouped by tier.
func (s *RedisStore) CountSessionsByTier(ctx context.Context) (map[core.Tier]int, error) {
	byTier := make(map[core.Tier]int)
	iter := s.client.Scan(ctx, 0, s.prefix+"session:*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		session, err := decodeSession(raw)
		if err != nil {
			continue
		}
		byTier[session.Tier]++
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("count sessions by tier: %w", err)
	}
	return byTier, nil
}

// TotalRequests returns the cumulative admitted-request count.
func (s *RedisStore) TotalRequests(ctx context.Context) (int64, error) {
	res, err := s.client.Get(ctx, s.requestCountKey()).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("total requests: %w", err)
	}
	return res, nil
}

// SweepSessions removes sessions whose recorded expiry has passed.
func (s *RedisStore) SweepSessions(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"session:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		session, err := decodeSession(raw)
		if err != nil || !session.Expired(now) {
			continue
		}
		s.client.SRem(ctx, s.identityKey(session.IdentityID), session.AccessToken)
		if n, _ := s.client.Del(ctx, key).Result(); n > 0 {
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("sweep sessions: %w", err)
	}
	return removed, nil
}

// AddToBlacklist bans an identity.
func (s *RedisStore) AddToBlacklist(ctx context.Context, identityID, reason string) error {
	if err := s.client.HSet(ctx, s.blacklistKey(), identityID, reason).Err(); err != nil {
		return fmt.Errorf("add to blacklist: %w", err)
	}
	return nil
}

// IsBlacklisted checks blacklist membership.
func (s *RedisStore) IsBlacklisted(ctx context.Context, identityID string) (bool, error) {
	banned, err := s.client.HExists(ctx, s.blacklistKey(), identityID).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	return banned, nil
}

// RemoveFromBlacklist lifts a ban.
func (s *RedisStore) RemoveFromBlacklist(ctx context.Context, identityID string) (bool, error) {
	n, err := s.client.HDel(ctx, s.blacklistKey(), identityID).Result()
	if err != nil {
		return false, fmt.Errorf("remove from blacklist: %w", err)
	}
	return n > 0, nil
}

// CountBlacklisted returns the number of banned identities.
func (s *RedisStore) CountBlacklisted(ctx context.Context) (int, error) {
	n, err := s.client.HLen(ctx, s.blacklistKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count blacklisted: %w", err)
	}
	return int(n), nil
}

// LastScore returns the last recorded score for an identity.
func (s *RedisStore) LastScore(ctx context.Context, identityID string) (int, error) {
	res, err := s.client.HGet(ctx, s.reputationKey(), identityID).Int()
	if err == redis.Nil {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reputation lookup: %w", err)
	}
	return res, nil
}

// RecordScore stores the score computed on a successful verification.
func (s *RedisStore) RecordScore(ctx context.Context, identityID string, score int) error {
	if err := s.client.HSet(ctx, s.reputationKey(), identityID, score).Err(); err != nil {
		return fmt.Errorf("record reputation: %w", err)
	}
	return nil
}

func (s *RedisStore) countKeys(ctx context.Context, pattern string) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("count keys: %w", err)
	}
	return count, nil
}
