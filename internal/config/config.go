package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Units    UnitsConfig    `mapstructure:"units"`
	Coach    CoachConfig    `mapstructure:"coach"`
	Planner  PlannerConfig  `mapstructure:"planner"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// DatabaseConfig selects the persistence backend. Driver is "mongo" or
// "memory"; URI and Name only apply to mongo.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

// UnitsConfig controls the display unit system on the API surface.
// Storage is always metric; "imperial" converts distances on the way out.
type UnitsConfig struct {
	System string `mapstructure:"system"`
}

// CoachConfig configures the optional commentary collaborator. When Enabled
// is false the engine runs fully standalone.
type CoachConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// PlannerConfig overrides the recalculation policy defaults. Zero values
// mean "use the built-in default".
type PlannerConfig struct {
	RecoveryWeekPeriod int     `mapstructure:"recovery_week_period"`
	RecoveryFactor     float64 `mapstructure:"recovery_factor"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Nested keys map to env vars, e.g. database.uri -> DATABASE_URI.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("database.driver", "mongo")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "runcoach")
	viper.SetDefault("units.system", "metric")
	viper.SetDefault("coach.enabled", false)
	viper.SetDefault("coach.model", "gpt-4o-mini")

	err = viper.ReadInConfig()
	// A missing config file is fine; env vars and defaults carry the day.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}
