package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RoundDuration int    `envconfig:"ROUND_DURATION" default:"60"` // seconds
	DataPath      string `envconfig:"DATA_PATH" default:"sketchparty.db"`
	WordsFile     string `envconfig:"WORDS_FILE"`
	StaticDir     string `envconfig:"STATIC_DIR" default:"static"`
	Debug         bool   `envconfig:"DEBUG" default:"false"`

	// Chat messages per second allowed on one connection.
	ChatRate       float64       `envconfig:"CHAT_RATE" default:"5"`
	ChatBurst      int           `envconfig:"CHAT_BURST" default:"10"`
	StatsCacheSize int           `envconfig:"STATS_CACHE_SIZE" default:"256"`
	RoomTTL        time.Duration `envconfig:"ROOM_TTL" default:"1h"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("processing config: %w", err)
	}
	if cfg.RoundDuration <= 0 {
		return Config{}, fmt.Errorf("ROUND_DURATION must be positive, got %d", cfg.RoundDuration)
	}
	return cfg, nil
}
