package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/popgate/core"
	"github.com/layer-3/popgate/ports"
)

const (
	// DefaultChallengeTTL is the challenge validity window.
	DefaultChallengeTTL = 5 * time.Minute

	// DefaultSessionTTL is the session validity window. Never extended
	// implicitly; renewal requires a fresh challenge/verify cycle.
	DefaultSessionTTL = 24 * time.Hour

	// DefaultMaxAttempts is the verification attempt budget per challenge.
	// Exceeding it blacklists the submitting identity.
	DefaultMaxAttempts = 3

	// DefaultPowDifficulty is the required proof-of-work difficulty.
	DefaultPowDifficulty = 4
)

// Config tunes the gateway. Zero values fall back to the defaults above.
type Config struct {
	ChallengeTTL  time.Duration
	SessionTTL    time.Duration
	MaxAttempts   int
	PowDifficulty int
	Tiers         core.TierTable
}

// Gateway is the proof-of-personhood gateway: it issues challenges, runs
// the multi-factor verification pipeline, converts evidence into a tier,
// and gates every downstream request on the resulting session.
type Gateway struct {
	prover     ports.IdentityProver
	challenges ports.ChallengeStore
	sessions   ports.SessionStore
	blacklist  ports.Blacklist
	ledger     ports.ReputationLedger
	tokenizer  ports.Tokenizer
	events     ports.EventPublisher

	challengeTTL  time.Duration
	sessionTTL    time.Duration
	maxAttempts   int
	powDifficulty int
	tiers         core.TierTable

	now func() time.Time
}

// NewGateway creates a gateway over the given collaborators.
func NewGateway(
	prover ports.IdentityProver,
	challenges ports.ChallengeStore,
	sessions ports.SessionStore,
	blacklist ports.Blacklist,
	ledger ports.ReputationLedger,
	tokenizer ports.Tokenizer,
	events ports.EventPublisher,
	cfg Config,
) *Gateway {
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = DefaultChallengeTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.PowDifficulty <= 0 {
		cfg.PowDifficulty = DefaultPowDifficulty
	}
	// A malformed table would panic or misresolve deep in the pipeline.
	if err := cfg.Tiers.Validate(); err != nil {
		cfg.Tiers = core.DefaultTierTable
	}

	return &Gateway{
		prover:        prover,
		challenges:    challenges,
		sessions:      sessions,
		blacklist:     blacklist,
		ledger:        ledger,
		tokenizer:     tokenizer,
		events:        events,
		challengeTTL:  cfg.ChallengeTTL,
		sessionTTL:    cfg.SessionTTL,
		maxAttempts:   cfg.MaxAttempts,
		powDifficulty: cfg.PowDifficulty,
		tiers:         cfg.Tiers,
		now:           time.Now,
	}
}

// RequestAccess issues a fresh challenge and registers it.
func (g *Gateway) RequestAccess(ctx context.Context) (*core.ChallengeGrant, error) {
	ch, err := g.prover.BeginAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin auth: %v", core.ErrServiceUnavailable, err)
	}

	now := g.now()
	if ch.IssuedAt.IsZero() {
		ch.IssuedAt = now
	}
	if ch.ExpiresAt.IsZero() {
		ch.ExpiresAt = now.Add(g.challengeTTL)
	}

	if err := g.challenges.PutChallenge(ctx, ch); err != nil {
		return nil, fmt.Errorf("%w: store challenge: %v", core.ErrInternal, err)
	}

	return &core.ChallengeGrant{
		SessionID: ch.SessionID,
		Challenge: ch.Hex,
		ExpiresAt: ch.ExpiresAt,
		Requirements: core.Requirements{
			ProofOfWorkDifficulty: g.powDifficulty,
			IdentityRequired:      true,
			ProofOfWorkRequired:   true,
		},
	}, nil
}

// VerifyPersonhood runs the verification pipeline against an outstanding
// challenge. Every gate is hard: the first failure returns immediately
// with a deny reason and no partial success. Cheap registry gates run
// before any cryptographic verification.
func (g *Gateway) VerifyPersonhood(ctx context.Context, sessionID string, bundle *core.ProofBundle) (*core.VerificationResult, error) {
	if bundle == nil {
		res := core.Deny(core.DenyInvalidAuth)
		res.Detail = "missing proof bundle"
		return res, nil
	}

	now := g.now()

	ch, err := g.challenges.GetChallenge(ctx, sessionID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Deny(core.DenyInvalidSession), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load challenge: %v", core.ErrInternal, err)
	}

	if ch.Expired(now) {
		if err := g.challenges.DeleteChallenge(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("%w: expire challenge: %v", core.ErrInternal, err)
		}
		return core.Deny(core.DenySessionExpired), nil
	}

	// Each failed attempt against one challenge costs a strike; exceeding
	// the budget is punished with a ban, not a retry-later.
	ch, err = g.challenges.BumpAttempts(ctx, sessionID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Deny(core.DenyInvalidSession), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: bump attempts: %v", core.ErrInternal, err)
	}
	if ch.Attempts > g.maxAttempts {
		if err := g.challenges.DeleteChallenge(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("%w: delete challenge: %v", core.ErrInternal, err)
		}
		if bundle.IdentityID != "" {
			if _, err := g.banIdentity(ctx, bundle.IdentityID, "too many verification attempts"); err != nil {
				return nil, err
			}
		}
		return core.Deny(core.DenyTooManyAttempts), nil
	}

	if bundle.IdentityID == "" {
		res := core.Deny(core.DenyInvalidAuth)
		res.Detail = "missing identity"
		return res, nil
	}

	banned, err := g.blacklist.IsBlacklisted(ctx, bundle.IdentityID)
	if err != nil {
		return nil, fmt.Errorf("%w: blacklist lookup: %v", core.ErrInternal, err)
	}
	if banned {
		return core.Deny(core.DenyBlacklisted), nil
	}

	if bundle.Auth == nil {
		res := core.Deny(core.DenyInvalidAuth)
		res.Detail = "missing auth response"
		return res, nil
	}
	verdict, err := g.prover.VerifyAuthResponse(ctx, bundle.Auth.Response, ch.Bytes, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: verify auth response: %v", core.ErrServiceUnavailable, err)
	}
	if !verdict.Valid {
		res := core.Deny(core.DenyInvalidAuth)
		res.Detail = verdict.Reason
		return res, nil
	}
	if verdict.Identity != "" && verdict.Identity != bundle.IdentityID {
		res := core.Deny(core.DenyInvalidAuth)
		res.Detail = "identity does not match signing key"
		return res, nil
	}

	if bundle.Work == nil {
		return core.Deny(core.DenyMissingPoW), nil
	}
	if len(bundle.Work.Challenge) != 0 && !bytes.Equal(bundle.Work.Challenge, ch.Bytes) {
		res := core.Deny(core.DenyInvalidPoW)
		res.Detail = "proof of work not bound to this challenge"
		return res, nil
	}
	work := *bundle.Work
	work.Challenge = ch.Bytes
	ok, err := g.prover.VerifyProofOfWork(ctx, &work, g.powDifficulty)
	if err != nil {
		return nil, fmt.Errorf("%w: verify proof of work: %v", core.ErrServiceUnavailable, err)
	}
	if !ok {
		return core.Deny(core.DenyInvalidPoW), nil
	}

	prior, err := g.priorScore(ctx, bundle)
	if err != nil {
		return nil, err
	}
	rep := core.ScoreReputation(bundle.Age, bundle.Work, prior)
	tier, limit := g.tiers.Resolve(rep.Score)

	session := &core.Session{
		IdentityID: bundle.IdentityID,
		PublicKey:  verdict.PublicKey,
		Reputation: rep,
		Tier:       tier,
		Limit:      limit,
		IssuedAt:   now,
		ExpiresAt:  now.Add(g.sessionTTL),
	}
	token, err := g.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return nil, fmt.Errorf("%w: mint access token: %v", core.ErrInternal, err)
	}
	session.AccessToken = token

	// The atomic take decides a race between two concurrent verifications
	// over the same challenge: the loser finds the challenge gone.
	if _, err := g.challenges.TakeChallenge(ctx, sessionID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Deny(core.DenyInvalidSession), nil
		}
		return nil, fmt.Errorf("%w: consume challenge: %v", core.ErrInternal, err)
	}

	if err := g.sessions.PutSession(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: store session: %v", core.ErrInternal, err)
	}
	if err := g.ledger.RecordScore(ctx, bundle.IdentityID, rep.Score); err != nil {
		fmt.Printf("Warning: failed to record reputation for %s: %v\n", bundle.IdentityID, err)
	}
	if g.events != nil {
		if err := g.events.PublishVerified(ctx, bundle.IdentityID, string(tier), rep.Score); err != nil {
			fmt.Printf("Warning: failed to publish verified event: %v\n", err)
		}
	}

	return &core.VerificationResult{
		Verified:    true,
		AccessToken: token,
		Reputation:  &rep,
		Tier:        tier,
		Limit:       &limit,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}

// priorScore resolves carried-forward reputation. The server-side ledger
// always wins; the caller-supplied value is honored only for identities
// the ledger has never seen.
func (g *Gateway) priorScore(ctx context.Context, bundle *core.ProofBundle) (int, error) {
	score, err := g.ledger.LastScore(ctx, bundle.IdentityID)
	if err == nil {
		return score, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return 0, fmt.Errorf("%w: reputation lookup: %v", core.ErrInternal, err)
	}
	if bundle.Carried != nil {
		return bundle.Carried.Score, nil
	}
	return 0, nil
}

// VerifyRequest admits or rejects a downstream request. On success the
// cumulative request counter is incremented and the tier's limits are
// returned for the caller to enforce.
func (g *Gateway) VerifyRequest(ctx context.Context, accessToken string) (*core.AdmissionResult, error) {
	now := g.now()

	// Cheap signature check rejects forged tokens before touching the
	// registry. Expiry is governed by the registry, not the token.
	if _, err := g.tokenizer.AccessTokenToIdentity(accessToken); err != nil {
		return &core.AdmissionResult{Reason: core.DenyInvalidToken}, nil
	}

	session, err := g.sessions.GetSession(ctx, accessToken)
	if errors.Is(err, core.ErrNotFound) {
		return &core.AdmissionResult{Reason: core.DenyInvalidToken}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load session: %v", core.ErrInternal, err)
	}

	if session.Expired(now) {
		if err := g.sessions.DeleteSession(ctx, accessToken); err != nil {
			return nil, fmt.Errorf("%w: evict session: %v", core.ErrInternal, err)
		}
		return &core.AdmissionResult{Reason: core.DenySessionExpired}, nil
	}

	// A session may outlive the moment its owner got banned.
	banned, err := g.blacklist.IsBlacklisted(ctx, session.IdentityID)
	if err != nil {
		return nil, fmt.Errorf("%w: blacklist lookup: %v", core.ErrInternal, err)
	}
	if banned {
		if err := g.sessions.DeleteSession(ctx, accessToken); err != nil {
			return nil, fmt.Errorf("%w: evict session: %v", core.ErrInternal, err)
		}
		return &core.AdmissionResult{Reason: core.DenyBlacklisted}, nil
	}

	session, err = g.sessions.AdmitSession(ctx, accessToken, now)
	if errors.Is(err, core.ErrNotFound) {
		// Revoked between the checks above and the admit.
		return &core.AdmissionResult{Reason: core.DenyInvalidToken}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: admit session: %v", core.ErrInternal, err)
	}

	limit := session.Limit
	return &core.AdmissionResult{
		Allowed:       true,
		IdentityID:    session.IdentityID,
		Tier:          session.Tier,
		Limit:         &limit,
		RequestCount:  session.RequestCount,
		LastRequestAt: session.LastRequestAt,
	}, nil
}

// BlacklistIdentity bans an identity and revokes every live session it
// owns. Returns the number of sessions revoked.
func (g *Gateway) BlacklistIdentity(ctx context.Context, identityID, reason string) (int, error) {
	return g.banIdentity(ctx, identityID, reason)
}

func (g *Gateway) banIdentity(ctx context.Context, identityID, reason string) (int, error) {
	// The flag is set before sessions are revoked so that admission, which
	// re-checks the blacklist, closes on the ban the instant it commits.
	if err := g.blacklist.AddToBlacklist(ctx, identityID, reason); err != nil {
		return 0, fmt.Errorf("%w: add to blacklist: %v", core.ErrInternal, err)
	}
	revoked, err := g.sessions.RevokeIdentity(ctx, identityID)
	if err != nil {
		return 0, fmt.Errorf("%w: revoke sessions: %v", core.ErrInternal, err)
	}
	if g.events != nil {
		if err := g.events.PublishBlacklisted(ctx, identityID, reason, revoked); err != nil {
			fmt.Printf("Warning: failed to publish blacklist event: %v\n", err)
		}
	}
	return revoked, nil
}

// UnblacklistIdentity lifts a ban. Revoked sessions are not restored; the
// identity must re-authenticate from scratch.
func (g *Gateway) UnblacklistIdentity(ctx context.Context, identityID string) (bool, error) {
	removed, err := g.blacklist.RemoveFromBlacklist(ctx, identityID)
	if err != nil {
		return false, fmt.Errorf("%w: remove from blacklist: %v", core.ErrInternal, err)
	}
	if removed && g.events != nil {
		if err := g.events.PublishUnblacklisted(ctx, identityID); err != nil {
			fmt.Printf("Warning: failed to publish unblacklist event: %v\n", err)
		}
	}
	return removed, nil
}

// Stats returns a snapshot of the gateway's registries.
func (g *Gateway) Stats(ctx context.Context) (*core.Stats, error) {
	challenges, err := g.challenges.CountChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: count challenges: %v", core.ErrInternal, err)
	}
	sessions, err := g.sessions.CountSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: count sessions: %v", core.ErrInternal, err)
	}
	byTier, err := g.sessions.CountSessionsByTier(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: count sessions by tier: %v", core.ErrInternal, err)
	}
	banned, err := g.blacklist.CountBlacklisted(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: count blacklisted: %v", core.ErrInternal, err)
	}
	total, err := g.sessions.TotalRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: total requests: %v", core.ErrInternal, err)
	}

	return &core.Stats{
		ActiveSessions:   sessions,
		ActiveChallenges: challenges,
		BlacklistedCount: banned,
		SessionsByTier:   byTier,
		TotalRequests:    total,
	}, nil
}
