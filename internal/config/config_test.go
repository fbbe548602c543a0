package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "mongo", cfg.Database.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Database.URI)
	assert.Equal(t, "runcoach", cfg.Database.Name)
	assert.Equal(t, "metric", cfg.Units.System)
	assert.False(t, cfg.Coach.Enabled)
	assert.Equal(t, "gpt-4o-mini", cfg.Coach.Model)
	assert.Zero(t, cfg.Planner.RecoveryWeekPeriod)
}

func TestLoadConfigFromFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	yaml := `
server:
  address: ":9191"
database:
  driver: memory
units:
  system: imperial
coach:
  enabled: true
  model: gpt-4.1-mini
planner:
  recovery_week_period: 3
  recovery_factor: 0.8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9191", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "imperial", cfg.Units.System)
	assert.True(t, cfg.Coach.Enabled)
	assert.Equal(t, "gpt-4.1-mini", cfg.Coach.Model)
	assert.Equal(t, 3, cfg.Planner.RecoveryWeekPeriod)
	assert.InDelta(t, 0.8, cfg.Planner.RecoveryFactor, 0.001)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("DATABASE_NAME", "runcoach_test")
	t.Setenv("SERVER_ADDRESS", ":7070")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "runcoach_test", cfg.Database.Name)
	assert.Equal(t, ":7070", cfg.Server.Address)
}
