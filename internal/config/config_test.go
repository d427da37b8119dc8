package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/popgate/core"
)

func writeTierFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, 4, cfg.PowDifficulty)
	assert.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, core.DefaultTierTable, cfg.Tiers)
}

func TestLoadRequiresTokenSecret(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret")
	t.Setenv("LISTEN_ADDR", ":8088")
	t.Setenv("POW_DIFFICULTY", "6")
	t.Setenv("CHALLENGE_TTL", "90s")
	t.Setenv("CHALLENGES_PER_IP", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8088", cfg.ListenAddr)
	assert.Equal(t, 6, cfg.PowDifficulty)
	assert.Equal(t, 90*time.Second, cfg.ChallengeTTL)
	assert.Equal(t, 5, cfg.ChallengesPerIP)
}

func TestLoadIgnoresMalformedOverrides(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret")
	t.Setenv("POW_DIFFICULTY", "not-a-number")
	t.Setenv("SESSION_TTL", "eleventy")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.PowDifficulty)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
}

func TestLoadTierTable(t *testing.T) {
	// Out of order on purpose; loading sorts by descending min score.
	path := writeTierFile(t, `
tiers:
  - tier: new
    min_score: 0
    limit:
      per_hour: 20
      per_day: 100
  - tier: verified
    min_score: 90
    limit:
      per_hour: -1
      per_day: -1
  - tier: trusted
    min_score: 40
    limit:
      per_hour: 2000
      per_day: 10000
`)

	table, err := LoadTierTable(path)
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, core.TierVerified, table[0].Tier)
	assert.Equal(t, core.TierNew, table[2].Tier)

	tier, limit := table.Resolve(45)
	assert.Equal(t, core.TierTrusted, tier)
	assert.Equal(t, int64(2000), limit.PerHour)

	tier, limit = table.Resolve(95)
	assert.Equal(t, core.TierVerified, tier)
	assert.Equal(t, core.Unlimited, limit.PerHour)
}

func TestLoadTierTableRejectsUncoveredZero(t *testing.T) {
	path := writeTierFile(t, `
tiers:
  - tier: trusted
    min_score: 40
    limit:
      per_hour: 100
      per_day: 500
`)

	_, err := LoadTierTable(path)
	assert.Error(t, err)
}

func TestLoadTierTableMissingFile(t *testing.T) {
	_, err := LoadTierTable(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadTierTableBadYAML(t *testing.T) {
	path := writeTierFile(t, "tiers: [not: {valid")
	_, err := LoadTierTable(path)
	assert.Error(t, err)
}

func TestLoadWiresTierFile(t *testing.T) {
	path := writeTierFile(t, `
tiers:
  - tier: new
    min_score: 0
    limit:
      per_hour: 1
      per_day: 2
`)
	t.Setenv("TOKEN_SECRET", "test-secret")
	t.Setenv("TIERS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Tiers, 1)
	assert.Equal(t, int64(1), cfg.Tiers[0].Limit.PerHour)
}
