package dianabot

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/dianabotdeep/dianabot/dianabot/database"
	"github.com/dianabotdeep/dianabot/dianabot/services"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log       LogConfig         `toml:"log"`
	Bot       BotConfig         `toml:"bot"`
	DB        database.DBConfig `toml:"db"`
	Spaces    SpacesConfig      `toml:"spaces"`
	Narrative NarrativeConfig   `toml:"narrative"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type SpacesConfig struct {
	Key       string `toml:"key"`
	Secret    string `toml:"secret"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	MediaRoot string `toml:"media_root"`
}

// NarrativeConfig tunes pacing: how much trust each event kind contributes
// and how often the progression sweep runs. Zero values fall back to the
// service defaults.
type NarrativeConfig struct {
	TrustDeltas   services.TrustDeltas `toml:"trust_deltas"`
	SweepInterval time.Duration        `toml:"sweep_interval"`
}

func (c NarrativeConfig) Deltas() services.TrustDeltas {
	if c.TrustDeltas == (services.TrustDeltas{}) {
		return services.DefaultTrustDeltas()
	}
	return c.TrustDeltas
}
