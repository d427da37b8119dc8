package core

import "fmt"

// Tier is a named rate-limit bucket assigned from a reputation score.
type Tier string

const (
	TierNew         Tier = "new"
	TierEstablished Tier = "established"
	TierTrusted     Tier = "trusted"
	TierVerified    Tier = "verified"
)

// Unlimited marks a rate limit with no cap.
const Unlimited int64 = -1

// RateLimit is the request budget attached to a tier.
type RateLimit struct {
	PerHour int64 `json:"per_hour" yaml:"per_hour"`
	PerDay  int64 `json:"per_day" yaml:"per_day"`
}

// TierPolicy binds a tier and its limits to the lowest score that earns it.
type TierPolicy struct {
	Tier     Tier      `yaml:"tier"`
	MinScore int       `yaml:"min_score"`
	Limit    RateLimit `yaml:"limit"`
}

// TierTable maps scores to tiers. Policies are ordered by descending
// MinScore; bounds are inclusive on the low end, so a score equal to a
// policy's MinScore earns that policy's tier.
type TierTable []TierPolicy

// DefaultTierTable is the stock score→tier mapping.
var DefaultTierTable = TierTable{
	{Tier: TierVerified, MinScore: 80, Limit: RateLimit{PerHour: Unlimited, PerDay: Unlimited}},
	{Tier: TierTrusted, MinScore: 50, Limit: RateLimit{PerHour: 1000, PerDay: 5000}},
	{Tier: TierEstablished, MinScore: 10, Limit: RateLimit{PerHour: 100, PerDay: 500}},
	{Tier: TierNew, MinScore: 0, Limit: RateLimit{PerHour: 10, PerDay: 50}},
}

// Resolve returns the tier and limits for a score. Deterministic: equal
// scores always resolve to the same policy.
func (t TierTable) Resolve(score int) (Tier, RateLimit) {
	for _, p := range t {
		if score >= p.MinScore {
			return p.Tier, p.Limit
		}
	}
	// A well-formed table ends with a MinScore of 0; fall back to the
	// last policy for tables that do not.
	last := t[len(t)-1]
	return last.Tier, last.Limit
}

// Validate checks that the table is non-empty, strictly descending in
// MinScore, and covers score zero.
func (t TierTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("tier table is empty")
	}
	for i := 1; i < len(t); i++ {
		if t[i].MinScore >= t[i-1].MinScore {
			return fmt.Errorf("tier table not in descending score order at %q", t[i].Tier)
		}
	}
	if t[len(t)-1].MinScore != 0 {
		return fmt.Errorf("tier table does not cover score 0")
	}
	return nil
}
