package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config defines runtime configuration for the session store.
type Config struct {
	// IdleTTL is how long a session survives without requests.
	IdleTTL time.Duration

	// HistoryLimit caps the records kept per session (oldest dropped first).
	HistoryLimit int

	// SweepInterval is how often the janitor removes idle sessions.
	SweepInterval time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		IdleTTL:       12 * time.Hour,
		HistoryLimit:  20,
		SweepInterval: 5 * time.Minute,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional:
//   - LISTINGGEN_SESSION_IDLE_TTL (Go duration)
//   - LISTINGGEN_HISTORY_LIMIT
//   - LISTINGGEN_SESSION_SWEEP_INTERVAL (Go duration)
//
// Returns ErrConfig if a value is present but invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("LISTINGGEN_SESSION_IDLE_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.IdleTTL = d
	}

	if v := strings.TrimSpace(os.Getenv("LISTINGGEN_HISTORY_LIMIT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			return Config{}, ErrConfig
		}
		cfg.HistoryLimit = n
	}

	if v := strings.TrimSpace(os.Getenv("LISTINGGEN_SESSION_SWEEP_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.SweepInterval = d
	}

	return cfg, nil
}
