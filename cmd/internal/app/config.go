package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"listinggen/cmd/internal/access"
	"listinggen/cmd/internal/audit"
	"listinggen/cmd/internal/generate"
	"listinggen/cmd/internal/license"
	"listinggen/cmd/internal/listing"
	"listinggen/cmd/security/passcode"

	"github.com/joho/godotenv"
)

// Config contains the runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	// WriteTimeout bounds a whole generate request, so it is long.
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration

	// DatabaseURL selects the audit sink: empty, postgres:// or sqlite:<path>.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless an audit database is configured and reachable.
	ReadinessRequireDB bool

	// If true, LISTINGGEN_TOKEN_HMAC_KEY must be set.
	RequireTokenHMAC bool

	OpenAIAPIKey  string
	OpenAIBaseURL string
	DefaultModel  string
	Models        []string
	MaxTokens     int

	GumroadProPermalink  string
	GumroadBYOKPermalink string
	GumroadVerifyURL     string
	LicenseVerifyTimeout time.Duration

	AdminBypass     string
	AdminBypassHash string

	DailyLimit      int
	CooldownSeconds int
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// without overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	def := listing.DefaultConfig()
	return Config{
		HTTPAddr:  EnvString("LISTINGGEN_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("LISTINGGEN_LOG_LEVEL", "info"),
		LogFormat: EnvString("LISTINGGEN_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("LISTINGGEN_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("LISTINGGEN_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("LISTINGGEN_HTTP_WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:       EnvDuration("LISTINGGEN_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("LISTINGGEN_HTTP_MAX_HEADER_BYTES", 1<<20),
		ShutdownTimeout:   EnvDuration("LISTINGGEN_SHUTDOWN_TIMEOUT", 10*time.Second),

		DatabaseURL: EnvString("LISTINGGEN_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("LISTINGGEN_DB_MAX_CONNS", 5),
		DBMinConns:  EnvInt32("LISTINGGEN_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("LISTINGGEN_READINESS_REQUIRE_DB", false),
		RequireTokenHMAC:   EnvBool("LISTINGGEN_REQUIRE_TOKEN_HMAC", false),

		OpenAIAPIKey:  EnvString("OPENAI_API_KEY", ""),
		OpenAIBaseURL: EnvString("OPENAI_BASE_URL", ""),
		DefaultModel:  EnvString("OPENAI_DEFAULT_MODEL", def.DefaultModel),
		Models:        EnvCSV("OPENAI_MODELS", strings.Join(def.Models, ",")),
		MaxTokens:     EnvInt("GENERATION_MAX_TOKENS", generate.DefaultMaxTokens),

		GumroadProPermalink:  EnvString("GUMROAD_PRODUCT_PERMALINK", ""),
		GumroadBYOKPermalink: EnvString("GUMROAD_BYOK_PERMALINK", ""),
		GumroadVerifyURL:     EnvString("GUMROAD_VERIFY_URL", license.DefaultVerifyURL),
		LicenseVerifyTimeout: EnvDuration("LICENSE_VERIFY_TIMEOUT", 10*time.Second),

		AdminBypass:     strings.TrimSpace(os.Getenv("ADMIN_BYPASS")),
		AdminBypassHash: strings.TrimSpace(os.Getenv("ADMIN_BYPASS_HASH")),

		DailyLimit:      EnvInt("USAGE_DAILY_LIMIT", access.DefaultDailyLimit),
		CooldownSeconds: EnvNonNegInt("USAGE_COOLDOWN_SECONDS", int(access.DefaultCooldown/time.Second)),
	}
}

// Validate reports settings that make the server unusable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		return fmt.Errorf("OPENAI_API_KEY: %w", ErrMissingCredential)
	}
	if _, _, err := audit.ParseURL(c.DatabaseURL); err != nil {
		return fmt.Errorf("%w: LISTINGGEN_DATABASE_URL: %v", ErrConfig, err)
	}
	if c.AdminBypassHash != "" && !passcode.LooksLikeHash(c.AdminBypassHash) {
		return fmt.Errorf("%w: ADMIN_BYPASS_HASH is not an argon2id hash", ErrConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "pretty", "text":
	default:
		return fmt.Errorf("%w: LISTINGGEN_LOG_FORMAT must be json or pretty", ErrConfig)
	}
	return nil
}

// ListingConfig is the generation and licensing policy derived from c.
func (c Config) ListingConfig() listing.Config {
	return listing.Config{
		DefaultModel: c.DefaultModel,
		Models:       c.Models,
		MaxTokens:    c.MaxTokens,
		Policy: access.Policy{
			DailyLimit: c.DailyLimit,
			Cooldown:   time.Duration(c.CooldownSeconds) * time.Second,
		},
		Products: license.Products{
			Pro:  c.GumroadProPermalink,
			BYOK: c.GumroadBYOKPermalink,
		},
	}
}
