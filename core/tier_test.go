package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTierDefaults(t *testing.T) {
	tests := []struct {
		score   int
		tier    Tier
		perHour int64
		perDay  int64
	}{
		{0, TierNew, 10, 50},
		{9, TierNew, 10, 50},
		{10, TierEstablished, 100, 500},
		{15, TierEstablished, 100, 500},
		{49, TierEstablished, 100, 500},
		{50, TierTrusted, 1000, 5000}, // lower bound is inclusive
		{79, TierTrusted, 1000, 5000},
		{80, TierVerified, Unlimited, Unlimited},
		{95, TierVerified, Unlimited, Unlimited},
		{100, TierVerified, Unlimited, Unlimited},
	}

	for _, tt := range tests {
		tier, limit := DefaultTierTable.Resolve(tt.score)
		assert.Equal(t, tt.tier, tier, "score %d", tt.score)
		assert.Equal(t, tt.perHour, limit.PerHour, "score %d", tt.score)
		assert.Equal(t, tt.perDay, limit.PerDay, "score %d", tt.score)
	}
}

func TestResolveTierDeterministic(t *testing.T) {
	for score := 0; score <= 100; score++ {
		first, firstLimit := DefaultTierTable.Resolve(score)
		for i := 0; i < 3; i++ {
			tier, limit := DefaultTierTable.Resolve(score)
			require.Equal(t, first, tier)
			require.Equal(t, firstLimit, limit)
		}
	}
}

func TestTierTableValidate(t *testing.T) {
	assert.NoError(t, DefaultTierTable.Validate())

	assert.Error(t, TierTable{}.Validate())

	outOfOrder := TierTable{
		{Tier: TierNew, MinScore: 0},
		{Tier: TierVerified, MinScore: 80},
	}
	assert.Error(t, outOfOrder.Validate())

	uncovered := TierTable{
		{Tier: TierVerified, MinScore: 80},
		{Tier: TierNew, MinScore: 5},
	}
	assert.Error(t, uncovered.Validate())
}
