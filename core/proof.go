package core

// SignatureProof is the Identity Proof Service's signed answer to a challenge.
type SignatureProof struct {
	Response []byte // Opaque signed response, interpreted by the prover
}

// ProofOfWork carries the solution to the computational puzzle bound to a
// challenge. Digest must be recomputable from Challenge and Nonce.
type ProofOfWork struct {
	Difficulty int
	Challenge  []byte // Challenge bytes the work was computed over
	Nonce      []byte
	Digest     []byte
}

// TimeProof attests to account age.
type TimeProof struct {
	AccountAgeDays int
}

// CarriedReputation is a caller-supplied reputation score from a prior
// session. Only honored for identities the server-side ledger has never
// seen; see Gateway.VerifyPersonhood.
type CarriedReputation struct {
	Score int
}

// ProofBundle is everything a caller submits to verify personhood. Each
// factor is an independent, optional (unless stated) typed proof.
type ProofBundle struct {
	IdentityID string
	Auth       *SignatureProof    // required
	Work       *ProofOfWork       // required
	Age        *TimeProof         // optional
	Carried    *CarriedReputation // optional
}
