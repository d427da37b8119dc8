package identityproof

import (
	"bytes"
	"context"
	"encoding/binary"
	"math/bits"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/layer-3/popgate/core"
)

// VerifyProofOfWork checks that keccak256(challenge || nonce) has at least
// as many leading zero bits as both requiredDifficulty and the claimed
// difficulty. The claim feeds reputation scoring, so the digest must back
// it; otherwise solving a cheap puzzle and claiming a hard one would buy
// unearned score. Verification is a single bounded hash; only the solver
// pays.
func (p *LocalProver) VerifyProofOfWork(ctx context.Context, work *core.ProofOfWork, requiredDifficulty int) (bool, error) {
	if work == nil || len(work.Nonce) == 0 {
		return false, nil
	}
	if work.Difficulty < requiredDifficulty {
		return false, nil
	}
	digest := crypto.Keccak256(work.Challenge, work.Nonce)
	if len(work.Digest) != 0 && !bytes.Equal(digest, work.Digest) {
		return false, nil
	}
	return leadingZeroBits(digest) >= work.Difficulty, nil
}

// SolveProofOfWork brute-forces a nonce for the challenge at the given
// difficulty. Used by clients and tests.
func SolveProofOfWork(challenge []byte, difficulty int) *core.ProofOfWork {
	nonce := make([]byte, 8)
	for i := uint64(0); ; i++ {
		binary.BigEndian.PutUint64(nonce, i)
		digest := crypto.Keccak256(challenge, nonce)
		if leadingZeroBits(digest) >= difficulty {
			return &core.ProofOfWork{
				Difficulty: difficulty,
				Challenge:  append([]byte(nil), challenge...),
				Nonce:      append([]byte(nil), nonce...),
				Digest:     digest,
			}
		}
	}
}

func leadingZeroBits(digest []byte) int {
	zeros := 0
	for _, b := range digest {
		if b == 0 {
			zeros += 8
			continue
		}
		zeros += bits.LeadingZeros8(b)
		break
	}
	return zeros
}
