package core

// Factor is one audited contribution to a reputation score.
type Factor struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Reputation is a bounded trust score with its per-factor breakdown.
type Reputation struct {
	Score   int      `json:"score"`
	Factors []Factor `json:"factors"`
}

// Factor names recorded by the scorer.
const (
	FactorAccountAge  = "account_age"
	FactorProofOfWork = "proof_of_work"
	FactorPriorScore  = "prior_reputation"
)

// Contribution caps. Prior reputation dominates but can never push an
// identity into the verified tier on its own.
const (
	maxAgeContribution   = 20
	maxWorkContribution  = 20
	maxPriorContribution = 60

	ScoreMin = 0
	ScoreMax = 100
)

// ScoreReputation computes a reputation from verified proof factors. It is
// a pure function: missing factors contribute zero, never an error, so a
// first-time caller can still pass on proof-of-work alone. Each
// contribution is monotonically non-decreasing in its input and the total
// is clamped to [ScoreMin, ScoreMax].
func ScoreReputation(age *TimeProof, work *ProofOfWork, prior int) Reputation {
	rep := Reputation{Factors: make([]Factor, 0, 3)}

	if age != nil {
		v := clamp(age.AccountAgeDays/30*5, 0, maxAgeContribution)
		rep.Factors = append(rep.Factors, Factor{Name: FactorAccountAge, Value: v})
		rep.Score += v
	}
	if work != nil {
		v := clamp(work.Difficulty*5, 0, maxWorkContribution)
		rep.Factors = append(rep.Factors, Factor{Name: FactorProofOfWork, Value: v})
		rep.Score += v
	}
	if prior > 0 {
		v := clamp(prior, 0, maxPriorContribution)
		rep.Factors = append(rep.Factors, Factor{Name: FactorPriorScore, Value: v})
		rep.Score += v
	}

	rep.Score = clamp(rep.Score, ScoreMin, ScoreMax)
	return rep
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
