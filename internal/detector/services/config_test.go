package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsBrokenValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero match threshold", func(c *Config) { c.MatchThreshold = 0 }},
		{"match threshold above one", func(c *Config) { c.MatchThreshold = 1.5 }},
		{"zero camp timeout", func(c *Config) { c.CampTimeout = 0 }},
		{"negative roam timeout", func(c *Config) { c.RoamTimeout = -time.Minute }},
		{"zero battle threshold", func(c *Config) { c.BattleThreshold = 0 }},
		{"negative min kills to save", func(c *Config) { c.MinKillsToSave = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigFromEnvAppliesOverrides(t *testing.T) {
	t.Setenv("DETECTOR_MATCH_THRESHOLD", "0.5")
	t.Setenv("DETECTOR_BATTLE_THRESHOLD", "60")

	cfg := ConfigFromEnv()
	assert.Equal(t, 0.5, cfg.MatchThreshold)
	assert.Equal(t, 60, cfg.BattleThreshold)
}

func TestConfigFromEnvDiscardsInvalidOverrides(t *testing.T) {
	t.Setenv("DETECTOR_MATCH_THRESHOLD", "0")

	cfg := ConfigFromEnv()
	assert.Equal(t, 0.35, cfg.MatchThreshold, "a threshold that cannot match anything falls back to the default")
	require.NoError(t, cfg.Validate())
}
