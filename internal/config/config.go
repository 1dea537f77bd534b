package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration for the imstrack server.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	DataDir       string
	HTTPPort      int
	CarrierConfig string // path to the carrier policy YAML, empty for defaults
	CDRRetention  int    // days to keep call detail records, 0 disables pruning
	EventsDSN     string // PostgreSQL DSN for the call event store, empty disables it
	MQTTBroker    string // MQTT broker URL for event publishing, empty disables it
	MQTTTopic     string // topic prefix for published events
	JWTSecret     string // hex-encoded 32-byte secret for control API JWT signing
	RateLimit     int    // control API requests per second per client
	LogLevel      string
	LogFormat     string // log output format: "text" or "json"
}

// defaults
const (
	defaultDataDir      = "./data"
	defaultHTTPPort     = 8080
	defaultCDRRetention = 90
	defaultMQTTTopic    = "imstrack/events"
	defaultRateLimit    = 10
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
)

// envPrefix is the prefix for all imstrack environment variables.
const envPrefix = "IMSTRACK_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("imstrack", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for the CDR database")
	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.CarrierConfig, "carrier-config", "", "path to the carrier policy YAML file")
	fs.IntVar(&cfg.CDRRetention, "cdr-retention", defaultCDRRetention, "days to keep call detail records (0 disables pruning)")
	fs.StringVar(&cfg.EventsDSN, "events-dsn", "", "PostgreSQL DSN for the call event store")
	fs.StringVar(&cfg.MQTTBroker, "mqtt-broker", "", "MQTT broker URL for event publishing (e.g., tcp://localhost:1883)")
	fs.StringVar(&cfg.MQTTTopic, "mqtt-topic", defaultMQTTTopic, "topic prefix for published events")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "hex-encoded 32-byte secret for control API JWT signing (auto-generated if empty)")
	fs.IntVar(&cfg.RateLimit, "rate-limit", defaultRateLimit, "control API requests per second per client")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the
	// command line. CLI flags take precedence over env vars.
	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was
// not explicitly provided on the command line. This preserves the
// precedence: CLI flags > env vars > defaults.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	// Track which flags were explicitly set via CLI.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	// Map of flag name to env var name.
	envMap := map[string]string{
		"data-dir":       envPrefix + "DATA_DIR",
		"http-port":      envPrefix + "HTTP_PORT",
		"carrier-config": envPrefix + "CARRIER_CONFIG",
		"cdr-retention":  envPrefix + "CDR_RETENTION",
		"events-dsn":     envPrefix + "EVENTS_DSN",
		"mqtt-broker":    envPrefix + "MQTT_BROKER",
		"mqtt-topic":     envPrefix + "MQTT_TOPIC",
		"jwt-secret":     envPrefix + "JWT_SECRET",
		"rate-limit":     envPrefix + "RATE_LIMIT",
		"log-level":      envPrefix + "LOG_LEVEL",
		"log-format":     envPrefix + "LOG_FORMAT",
	}

	for flagName, envVar := range envMap {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			continue
		}
		switch flagName {
		case "data-dir":
			cfg.DataDir = val
		case "http-port":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.HTTPPort = v
			}
		case "carrier-config":
			cfg.CarrierConfig = val
		case "cdr-retention":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.CDRRetention = v
			}
		case "events-dsn":
			cfg.EventsDSN = val
		case "mqtt-broker":
			cfg.MQTTBroker = val
		case "mqtt-topic":
			cfg.MQTTTopic = val
		case "jwt-secret":
			cfg.JWTSecret = val
		case "rate-limit":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.RateLimit = v
			}
		case "log-level":
			cfg.LogLevel = val
		case "log-format":
			cfg.LogFormat = val
		}
	}
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if c.CDRRetention < 0 {
		return fmt.Errorf("cdr-retention must not be negative, got %d", c.CDRRetention)
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("rate-limit must be at least 1, got %d", c.RateLimit)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	return nil
}

// JWTSecretBytes returns the decoded 32-byte JWT signing secret.
// If no secret is configured, it generates a random 32-byte key and
// stores the hex-encoded value back in the config for the process
// lifetime.
func (c *Config) JWTSecretBytes() ([]byte, error) {
	if c.JWTSecret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating jwt secret: %w", err)
		}
		c.JWTSecret = hex.EncodeToString(key)
		slog.Warn("no jwt-secret configured, generated ephemeral key (tokens will not survive restart)")
		return key, nil
	}
	key, err := hex.DecodeString(c.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("decoding jwt secret: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("jwt secret must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// SlogHandler returns a slog.Handler configured with the appropriate
// format (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log
// level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
