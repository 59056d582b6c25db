package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

const tokenPlaceholder = "<bot secret token>"

// AppConfig holds the whole service configuration.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`

	Discord struct {
		Token string `envconfig:"DISCORD_TOKEN"`
	} `envconfig:""`

	Channels struct {
		Equal       string `envconfig:"EQUAL_CHANNEL_ID"`
		Leaderboard string `envconfig:"LEADERBOARD_CHANNEL_ID"`
		Chaos       string `envconfig:"CHAOS_CHANNEL_ID"`
	} `envconfig:""`

	EqualRoleID string `envconfig:"EQUAL_ROLE_ID"`

	Historical struct {
		ThresholdSeconds int  `envconfig:"HISTORICAL_SEARCH_THRESHOLD" default:"600"`
		Purge            bool `envconfig:"HISTORICAL_PURGE" default:"false"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	OpsAddr string `envconfig:"OPS_ADDR" default:":8080"`
}

// Load reads the config from the environment. Missing or placeholder
// credentials abort startup.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	if cfg.Discord.Token == "" || cfg.Discord.Token == tokenPlaceholder {
		log.Fatalf("set DISCORD_TOKEN to your bot's secret token")
	}
	return cfg
}
