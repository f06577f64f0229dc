package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string
}

// RedisConfig holds the optional Redis mirror configuration. An empty URL
// disables the mirror.
type RedisConfig struct {
	URL      string
	Password string
}

// PostgresConfig holds the optional snapshot history writer configuration.
// An empty DSN disables the writer.
type PostgresConfig struct {
	DSN string
}

// PollConfig controls the per-topic fetch schedule
type PollConfig struct {
	// Sports that are polled for odds only (no score feed); these tick fast
	OddsOnlySports map[string]bool

	OddsInterval     time.Duration // odds-only topics
	CombinedInterval time.Duration // score+odds topics
	FetchTimeout     time.Duration // per upstream request
}

// ProviderConfig holds upstream provider endpoints
type ProviderConfig struct {
	ScoresBaseURL string
	OddsBaseURL   string
	OddsAPIKey    string
}

// SyncConfig controls the device-state reconciler
type SyncConfig struct {
	HistoryCapacity int
}

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	Poll      PollConfig
	Providers ProviderConfig
	Sync      SyncConfig

	// Sports accepted from subscribe requests (comma-separated SPORTS env)
	Sports map[string]bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: getEnv("SERVER_ADDR", ":8080"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Postgres: PostgresConfig{
			DSN: getEnv("POSTGRES_DSN", ""),
		},
		Poll: PollConfig{
			OddsOnlySports:   keySet(getEnv("ODDS_ONLY_SPORTS", "")),
			OddsInterval:     getDuration("ODDS_POLL_INTERVAL", 5*time.Second),
			CombinedInterval: getDuration("SCORE_POLL_INTERVAL", 30*time.Second),
			FetchTimeout:     getDuration("FETCH_TIMEOUT", 10*time.Second),
		},
		Providers: ProviderConfig{
			ScoresBaseURL: getEnv("SCORES_BASE_URL", "https://site.api.espn.com/apis/site/v2/sports"),
			OddsBaseURL:   getEnv("ODDS_BASE_URL", "https://api.the-odds-api.com/v4"),
			OddsAPIKey:    getEnv("ODDS_API_KEY", ""),
		},
		Sync: SyncConfig{
			HistoryCapacity: getInt("SYNC_HISTORY_CAPACITY", 500),
		},
		Sports: keySet(getEnv("SPORTS", "basketball_nba")),
	}
}

// IntervalFor returns the poll interval for a sport
func (pc PollConfig) IntervalFor(sport string) time.Duration {
	if pc.OddsOnlySports[sport] {
		return pc.OddsInterval
	}
	return pc.CombinedInterval
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

// keySet parses a comma-separated list into a membership set
func keySet(csv string) map[string]bool {
	set := make(map[string]bool)
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			set[part] = true
		}
	}
	return set
}
