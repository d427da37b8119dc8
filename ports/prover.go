package ports

import (
	"context"

	"github.com/layer-3/popgate/core"
)

// AuthVerdict is the Identity Proof Service's answer to a signed response.
type AuthVerdict struct {
	Valid     bool
	Reason    string // set when Valid is false
	PublicKey []byte // set when Valid is true
	Identity  string // identity derived from the key, when the scheme defines one
}

// IdentityProver is the external Identity Proof Service. The gateway
// orchestrates it; it never implements the cryptography itself.
type IdentityProver interface {
	// BeginAuth issues a fresh challenge.
	BeginAuth(ctx context.Context) (*core.Challenge, error)

	// VerifyAuthResponse checks a signed response against the challenge
	// bytes it was issued for.
	VerifyAuthResponse(ctx context.Context, response []byte, challenge []byte, sessionID string) (*AuthVerdict, error)

	// VerifyProofOfWork checks a proof-of-work solution against the
	// required difficulty.
	VerifyProofOfWork(ctx context.Context, work *core.ProofOfWork, requiredDifficulty int) (bool, error)
}
