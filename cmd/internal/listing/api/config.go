package listingapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls the JSON API transport.
type Config struct {
	MaxBodyBytes int64
	TrustProxy   bool

	CookieName     string
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	// Unlock attempts allowed per client IP per window.
	UnlockIPMax    int
	UnlockIPWindow time.Duration
}

// DefaultConfig returns development-friendly defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:   64 << 10,
		CookieName:     "listinggen_session",
		CookiePath:     "/",
		CookieSameSite: http.SameSiteLaxMode,
		UnlockIPMax:    10,
		UnlockIPWindow: 5 * time.Minute,
	}
}

// LoadConfigFromEnv loads API config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		MaxBodyBytes:   envInt64("LISTINGGEN_MAX_BODY_BYTES", def.MaxBodyBytes),
		TrustProxy:     envBool("LISTINGGEN_TRUST_PROXY", false),
		CookieName:     envString("LISTINGGEN_COOKIE_NAME", def.CookieName),
		CookiePath:     envString("LISTINGGEN_COOKIE_PATH", def.CookiePath),
		CookieDomain:   strings.TrimSpace(os.Getenv("LISTINGGEN_COOKIE_DOMAIN")),
		CookieSecure:   envBool("LISTINGGEN_COOKIE_SECURE", false),
		CookieSameSite: parseSameSite(os.Getenv("LISTINGGEN_COOKIE_SAMESITE")),
		UnlockIPMax:    envInt("LISTINGGEN_UNLOCK_IP_MAX", def.UnlockIPMax),
		UnlockIPWindow: envDuration("LISTINGGEN_UNLOCK_IP_WINDOW", def.UnlockIPWindow),
	}

	// Browsers drop SameSite=None cookies that are not Secure.
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}
	return cfg
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteLaxMode
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
