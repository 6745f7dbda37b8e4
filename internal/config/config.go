// Package config carries the two configuration surfaces: the JSON game
// config (stake tiers, turn clock) shared with the client bundle, and the
// env-driven relay runtime config.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// StakeTier is one staked-match bracket.
type StakeTier struct {
	ID    string `json:"id"`
	Stake int64  `json:"stake"`
}

type GameConfig struct {
	TaxRate             float64     `json:"tax_rate"`
	DefaultTier         string      `json:"default_tier"`
	Tiers               []StakeTier `json:"tiers"`
	TurnDurationSeconds int         `json:"turn_duration_seconds"`
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadGameConfig loads the game configuration from the given path.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			return
		}
		c, err := ParseGameConfig(data)
		if err != nil {
			loadErr = err
			return
		}
		cfg = c
	})
	return loadErr
}

// ParseGameConfig decodes a game config document.
func ParseGameConfig(data []byte) (*GameConfig, error) {
	var c GameConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	return &c, nil
}

// GetGameConfig returns the global game configuration.
func GetGameConfig() *GameConfig {
	return cfg
}

// TurnTime returns the configured per-turn clock.
func (c *GameConfig) TurnTime() time.Duration {
	if c == nil || c.TurnDurationSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TurnDurationSeconds) * time.Second
}

// Rate returns the configured house tax rate.
func (c *GameConfig) Rate() float64 {
	if c == nil {
		return 0
	}
	return c.TaxRate
}

// StakeFor returns the stake for a given tier ID, or the default tier's if
// not found.
func (c *GameConfig) StakeFor(tierID string) int64 {
	if c == nil {
		return 0
	}
	target := tierID
	if target == "" {
		target = c.DefaultTier
	}
	for _, tier := range c.Tiers {
		if tier.ID == target {
			return tier.Stake
		}
	}
	for _, tier := range c.Tiers {
		if tier.ID == c.DefaultTier {
			return tier.Stake
		}
	}
	return 0
}

// RelayConfig is the relay server's runtime configuration, read from the
// environment (optionally seeded from a .env file).
type RelayConfig struct {
	Addr         string
	Backend      string // "sqlite" or "dynamo"
	SQLiteDSN    string
	DynamoTable  string
	JWTSecret    string
	JWTIssuer    string
	PollInterval time.Duration
}

// LoadRelayConfig reads the relay configuration. A missing .env file is not
// an error; explicit environment variables win over the file either way.
func LoadRelayConfig() (RelayConfig, error) {
	_ = godotenv.Load()

	c := RelayConfig{
		Addr:         envOr("RELAY_ADDR", ":8080"),
		Backend:      envOr("RELAY_BACKEND", "sqlite"),
		SQLiteDSN:    envOr("RELAY_DB_DSN", "./data/turnsync.db"),
		DynamoTable:  os.Getenv("RELAY_DYNAMO_TABLE"),
		JWTSecret:    os.Getenv("RELAY_JWT_SECRET"),
		JWTIssuer:    envOr("RELAY_JWT_ISSUER", "turnsync"),
		PollInterval: 0,
	}
	if ms := os.Getenv("RELAY_POLL_INTERVAL_MS"); ms != "" {
		v, err := strconv.Atoi(ms)
		if err != nil || v <= 0 {
			return RelayConfig{}, fmt.Errorf("invalid RELAY_POLL_INTERVAL_MS %q", ms)
		}
		c.PollInterval = time.Duration(v) * time.Millisecond
	}

	if c.JWTSecret == "" {
		return RelayConfig{}, fmt.Errorf("RELAY_JWT_SECRET is required")
	}
	switch c.Backend {
	case "sqlite":
	case "dynamo":
		if c.DynamoTable == "" {
			return RelayConfig{}, fmt.Errorf("RELAY_DYNAMO_TABLE is required for the dynamo backend")
		}
	default:
		return RelayConfig{}, fmt.Errorf("unknown RELAY_BACKEND %q", c.Backend)
	}
	return c, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
