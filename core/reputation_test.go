package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreReputationNoFactors(t *testing.T) {
	rep := ScoreReputation(nil, nil, 0)

	assert.Equal(t, 0, rep.Score)
	assert.Empty(t, rep.Factors)
}

func TestScoreReputationAccountAge(t *testing.T) {
	tests := []struct {
		days int
		want int
	}{
		{0, 0},
		{29, 0},
		{30, 5},
		{59, 5},
		{60, 10},
		{120, 20},
		{365, 20}, // capped
		{-10, 0},  // hostile input clamps to zero
	}

	for _, tt := range tests {
		rep := ScoreReputation(&TimeProof{AccountAgeDays: tt.days}, nil, 0)
		assert.Equal(t, tt.want, rep.Score, "age %d days", tt.days)
	}
}

func TestScoreReputationProofOfWork(t *testing.T) {
	tests := []struct {
		difficulty int
		want       int
	}{
		{0, 0},
		{1, 5},
		{2, 10},
		{4, 20},
		{10, 20}, // capped
	}

	for _, tt := range tests {
		rep := ScoreReputation(nil, &ProofOfWork{Difficulty: tt.difficulty}, 0)
		assert.Equal(t, tt.want, rep.Score, "difficulty %d", tt.difficulty)
	}
}

func TestScoreReputationPriorScore(t *testing.T) {
	assert.Equal(t, 40, ScoreReputation(nil, nil, 40).Score)
	assert.Equal(t, 60, ScoreReputation(nil, nil, 60).Score)
	assert.Equal(t, 60, ScoreReputation(nil, nil, 95).Score) // capped
	assert.Equal(t, 0, ScoreReputation(nil, nil, -5).Score)
}

func TestScoreReputationBounded(t *testing.T) {
	rep := ScoreReputation(&TimeProof{AccountAgeDays: 10000}, &ProofOfWork{Difficulty: 100}, 1000)

	assert.Equal(t, 100, rep.Score)
	assert.LessOrEqual(t, rep.Score, ScoreMax)
	assert.GreaterOrEqual(t, rep.Score, ScoreMin)
}

func TestScoreReputationFactorsAudited(t *testing.T) {
	rep := ScoreReputation(&TimeProof{AccountAgeDays: 90}, &ProofOfWork{Difficulty: 2}, 30)

	require.Len(t, rep.Factors, 3)
	assert.Equal(t, Factor{Name: FactorAccountAge, Value: 15}, rep.Factors[0])
	assert.Equal(t, Factor{Name: FactorProofOfWork, Value: 10}, rep.Factors[1])
	assert.Equal(t, Factor{Name: FactorPriorScore, Value: 30}, rep.Factors[2])
	assert.Equal(t, 55, rep.Score)
}

func TestScoreReputationMonotonic(t *testing.T) {
	prevAge := -1
	for days := 0; days <= 400; days += 10 {
		s := ScoreReputation(&TimeProof{AccountAgeDays: days}, nil, 0).Score
		assert.GreaterOrEqual(t, s, prevAge, "age %d", days)
		prevAge = s
	}

	prevWork := -1
	for d := 0; d <= 12; d++ {
		s := ScoreReputation(nil, &ProofOfWork{Difficulty: d}, 0).Score
		assert.GreaterOrEqual(t, s, prevWork, "difficulty %d", d)
		prevWork = s
	}

	prevPrior := -1
	for p := 0; p <= 100; p += 5 {
		s := ScoreReputation(nil, nil, p).Score
		assert.GreaterOrEqual(t, s, prevPrior, "prior %d", p)
		prevPrior = s
	}
}
