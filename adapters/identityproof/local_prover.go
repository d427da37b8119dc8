// Package identityproof provides a local implementation of the Identity
// Proof Service consumed by the gateway: secp256k1 signature recovery for
// the identity factor and a keccak256 hash puzzle for proof-of-work.
package identityproof

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/layer-3/popgate/core"
	"github.com/layer-3/popgate/ports"
)

const challengeByteLen = 32

// LocalProver implements ports.IdentityProver in-process.
type LocalProver struct {
	challengeTTL time.Duration
}

// NewLocalProver creates a prover issuing challenges valid for ttl.
func NewLocalProver(ttl time.Duration) *LocalProver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LocalProver{challengeTTL: ttl}
}

// BeginAuth issues a fresh random challenge.
func (p *LocalProver) BeginAuth(ctx context.Context) (*core.Challenge, error) {
	b := make([]byte, challengeByteLen)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}
	now := time.Now()
	return &core.Challenge{
		SessionID: uuid.New().String(),
		Bytes:     b,
		Hex:       hex.EncodeToString(b),
		IssuedAt:  now,
		ExpiresAt: now.Add(p.challengeTTL),
	}, nil
}

// VerifyAuthResponse checks a personal-sign secp256k1 signature over the
// challenge message. The verdict's Identity is the recovered address, so
// the gateway can reject bundles whose claimed identity does not own the
// signing key.
func (p *LocalProver) VerifyAuthResponse(ctx context.Context, response []byte, challenge []byte, sessionID string) (*ports.AuthVerdict, error) {
	sig, err := hexutil.Decode(string(response))
	if err != nil {
		return &ports.AuthVerdict{Reason: "malformed signature encoding"}, nil
	}
	if len(sig) != crypto.SignatureLength {
		return &ports.AuthVerdict{Reason: "signature must be 65 bytes"}, nil
	}

	// Ethereum wallets emit V as 27/28; recovery wants 0/1.
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	digest := accounts.TextHash(ChallengeMessage(challenge, sessionID))
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return &ports.AuthVerdict{Reason: "signature recovery failed"}, nil
	}

	return &ports.AuthVerdict{
		Valid:     true,
		PublicKey: crypto.CompressPubkey(pub),
		Identity:  crypto.PubkeyToAddress(*pub).Hex(),
	}, nil
}

// ChallengeMessage is the canonical byte string a caller signs for a
// challenge. Binding the session id prevents replaying a signature against
// a different exchange that happened to reuse challenge bytes.
func ChallengeMessage(challenge []byte, sessionID string) []byte {
	return []byte("popgate challenge " + hex.EncodeToString(challenge) + " session " + sessionID)
}

// SignChallenge produces the auth response for a challenge. Used by
// clients and tests; the gateway itself only verifies.
func SignChallenge(key *ecdsa.PrivateKey, challenge []byte, sessionID string) ([]byte, error) {
	digest := accounts.TextHash(ChallengeMessage(challenge, sessionID))
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("sign challenge: %w", err)
	}
	return []byte(hexutil.Encode(sig)), nil
}
