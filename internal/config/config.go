// internal/config/config.go
//
// Process configuration for the MindMaster server.
// Values come from the environment, optionally seeded from a .env file in
// development. Every field has a default so a bare `go run .` works locally.

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the application configuration.
type Config struct {
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Port     string `envconfig:"PORT" default:"5000"`

	DatabasePath string `envconfig:"DATABASE_PATH" default:"./data/mindmaster.db"`

	JWTSecret  string        `envconfig:"JWT_SECRET" default:"dev_secret_change_me"`
	JWTExpires time.Duration `envconfig:"JWT_EXPIRES" default:"168h"`

	// Comma-separated list of origins allowed to call the API with credentials.
	ClientOrigins string `envconfig:"CLIENT_ORIGINS" default:"http://localhost:5173"`

	PuzzleAPIURL    string        `envconfig:"PUZZLE_API_URL" default:"https://marcconrad.com/uob/heart/api.php"`
	TriviaAPIURL    string        `envconfig:"TRIVIA_API_URL" default:"https://opentdb.com/api.php?amount=1&type=multiple"`
	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"8s"`

	// Empty disables the Redis leaderboard cache.
	RedisURL            string        `envconfig:"REDIS_URL"`
	LeaderboardCacheTTL time.Duration `envconfig:"LEADERBOARD_CACHE_TTL" default:"30s"`

	WordsFile   string `envconfig:"WORDS_FILE"`
	RiddlesFile string `envconfig:"RIDDLES_FILE"`

	// 0 seeds the puzzle generator from the clock.
	RandomSeed int64 `envconfig:"RANDOM_SEED" default:"0"`
}

// Load reads envFile (if present) into the process environment and then
// decodes the environment into a Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				log.Warn().Err(err).Str("file", envFile).Msg("could not load env file")
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.IsProduction() && c.JWTSecret == "dev_secret_change_me" {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.JWTExpires <= 0 {
		return errors.New("JWT_EXPIRES must be positive")
	}
	return nil
}

// IsProduction reports whether the server runs with production cookie/log settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// AllowedOrigins splits ClientOrigins into a slice.
func (c *Config) AllowedOrigins() []string {
	if c.ClientOrigins == "" {
		return nil
	}
	var out []string
	for _, o := range strings.Split(c.ClientOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
