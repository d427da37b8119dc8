// Package config loads gateway configuration from the environment, with
// optional .env support for local development and a YAML override for the
// tier table.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/layer-3/popgate/core"
)

// Config is the gateway's runtime configuration.
type Config struct {
	ListenAddr  string
	RedisURL    string // empty selects the in-memory store
	TokenSecret string

	PowDifficulty int
	ChallengeTTL  time.Duration
	SessionTTL    time.Duration
	SweepInterval time.Duration

	ChallengesPerIP int
	ChallengeWindow time.Duration

	Tiers core.TierTable
}

// Load reads configuration from the environment. A .env file is honored
// when present; injected environment variables win.
func Load() (*Config, error) {
	// Missing .env is fine in containerized deployments.
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:      envOr("LISTEN_ADDR", ":9000"),
		RedisURL:        os.Getenv("REDIS_URL"),
		TokenSecret:     os.Getenv("TOKEN_SECRET"),
		PowDifficulty:   envIntOr("POW_DIFFICULTY", 4),
		ChallengeTTL:    envDurationOr("CHALLENGE_TTL", 5*time.Minute),
		SessionTTL:      envDurationOr("SESSION_TTL", 24*time.Hour),
		SweepInterval:   envDurationOr("SWEEP_INTERVAL", time.Minute),
		ChallengesPerIP: envIntOr("CHALLENGES_PER_IP", 30),
		ChallengeWindow: envDurationOr("CHALLENGE_WINDOW", time.Minute),
		Tiers:           core.DefaultTierTable,
	}

	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("TOKEN_SECRET is required")
	}

	if path := os.Getenv("TIERS_FILE"); path != "" {
		tiers, err := LoadTierTable(path)
		if err != nil {
			return nil, fmt.Errorf("load tier table: %w", err)
		}
		cfg.Tiers = tiers
	}

	return cfg, nil
}

// LoadTierTable reads a score→tier mapping from a YAML file. Policies may
// appear in any order; the table is sorted by descending minimum score.
func LoadTierTable(path string) (core.TierTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Tiers []core.TierPolicy `yaml:"tiers"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	table := core.TierTable(doc.Tiers)
	sort.Slice(table, func(i, j int) bool { return table[i].MinScore > table[j].MinScore })
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
