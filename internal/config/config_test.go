package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseGameConfigAndStakeLookup(t *testing.T) {
	doc := []byte(`{
		"tax_rate": 0.05,
		"default_tier": "bronze",
		"turn_duration_seconds": 45,
		"tiers": [
			{"id": "bronze", "stake": 100},
			{"id": "silver", "stake": 500}
		]
	}`)
	c, err := ParseGameConfig(doc)
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, c.TurnTime())

	require.Equal(t, int64(500), c.StakeFor("silver"))
	require.Equal(t, int64(100), c.StakeFor(""), "empty tier falls back to default")
	require.Equal(t, int64(100), c.StakeFor("gold"), "unknown tier falls back to default")

	_, err = ParseGameConfig([]byte(`{broken`))
	require.Error(t, err)
}

func TestRelayConfigFromEnv(t *testing.T) {
	t.Setenv("RELAY_JWT_SECRET", "s3cret")
	t.Setenv("RELAY_ADDR", ":9000")
	t.Setenv("RELAY_BACKEND", "sqlite")
	t.Setenv("RELAY_POLL_INTERVAL_MS", "250")

	c, err := LoadRelayConfig()
	require.NoError(t, err)
	require.Equal(t, ":9000", c.Addr)
	require.Equal(t, "sqlite", c.Backend)
	require.Equal(t, 250*time.Millisecond, c.PollInterval)
	require.Equal(t, "turnsync", c.JWTIssuer)
}

func TestRelayConfigValidation(t *testing.T) {
	t.Setenv("RELAY_JWT_SECRET", "")
	t.Setenv("RELAY_BACKEND", "sqlite")
	_, err := LoadRelayConfig()
	require.Error(t, err, "missing secret must be refused")

	t.Setenv("RELAY_JWT_SECRET", "s3cret")
	t.Setenv("RELAY_BACKEND", "dynamo")
	t.Setenv("RELAY_DYNAMO_TABLE", "")
	_, err = LoadRelayConfig()
	require.Error(t, err, "dynamo backend needs a table")

	t.Setenv("RELAY_BACKEND", "bogus")
	_, err = LoadRelayConfig()
	require.Error(t, err)
}
