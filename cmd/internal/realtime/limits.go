package realtime

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// Max bytes per websocket frame read. A generate.request carries the
	// whole listing form, so this matches the HTTP body limit.
	maxFrameBytes = 64 << 10

	wsDefaultSendQueueSize = 64
	wsMinSendQueueSize     = 16

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 5 * time.Minute
	wsCloseGrace          = 1 * time.Second
	wsMaxPingFailures     = 3

	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Inbound envelopes per connection per window.
	rateLimitEvents = 30
	rateLimitWindow = 10 * time.Second

	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// Config controls the websocket gateway.
type Config struct {
	// DevInsecure disables the websocket library's origin verification.
	DevInsecure    bool
	OriginRequired bool
	AllowedOrigins []string

	WriteTimeout    time.Duration
	ReadIdleTimeout time.Duration
	SendQueueSize   int

	HeartbeatEvery   time.Duration
	HeartbeatTimeout time.Duration

	RateEvents int
	RateWindow time.Duration
}

// DefaultConfig requires an Origin and allows only localhost.
func DefaultConfig() Config {
	return Config{
		OriginRequired:   true,
		AllowedOrigins:   splitCSV(wsDefaultAllowedOrigins),
		WriteTimeout:     wsDefaultWriteTimeout,
		ReadIdleTimeout:  wsDefaultReadIdle,
		SendQueueSize:    wsDefaultSendQueueSize,
		HeartbeatEvery:   heartbeatInterval,
		HeartbeatTimeout: heartbeatTimeout,
		RateEvents:       rateLimitEvents,
		RateWindow:       rateLimitWindow,
	}
}

// LoadConfigFromEnv reads LISTINGGEN_WS_* variables. Invalid values fall
// back to defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		DevInsecure:      envBoolWS("LISTINGGEN_WS_DEV_INSECURE", false),
		OriginRequired:   envBoolWS("LISTINGGEN_WS_ORIGIN_REQUIRED", def.OriginRequired),
		AllowedOrigins:   envCSVWS("LISTINGGEN_WS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins),
		WriteTimeout:     envDurationWS("LISTINGGEN_WS_WRITE_TIMEOUT", def.WriteTimeout),
		ReadIdleTimeout:  envDurationWS("LISTINGGEN_WS_READ_IDLE_TIMEOUT", def.ReadIdleTimeout),
		SendQueueSize:    envIntWS("LISTINGGEN_WS_SEND_QUEUE", def.SendQueueSize),
		HeartbeatEvery:   envDurationWS("LISTINGGEN_WS_HEARTBEAT_INTERVAL", def.HeartbeatEvery),
		HeartbeatTimeout: envDurationWS("LISTINGGEN_WS_HEARTBEAT_TIMEOUT", def.HeartbeatTimeout),
		RateEvents:       envIntWS("LISTINGGEN_WS_RATE_EVENTS", def.RateEvents),
		RateWindow:       envDurationWS("LISTINGGEN_WS_RATE_WINDOW", def.RateWindow),
	}
	if cfg.SendQueueSize < wsMinSendQueueSize {
		cfg.SendQueueSize = wsMinSendQueueSize
	}
	return cfg
}

func envBoolWS(key string, def bool) bool {
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

func envIntWS(key string, def int) int {
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

func envDurationWS(key string, def time.Duration) time.Duration {
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

func envCSVWS(key, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	return splitCSV(raw)
}

func splitCSV(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
