package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	TransportLocal = "local"
	TransportRedis = "redis"
)

type Config struct {
	Port             string
	Env              string
	Transport        string
	RedisURL         string
	PubSubChannel    string
	DatabaseURL      string
	DBMaxConns       int32
	DBMinConns       int32
	SQLitePath       string
	ArchiveRetention time.Duration
	BotSchedule      string
	BotSender        string
	BotAutostart     bool
	AuthKey          string
	AllowedOrigins   []string
	InstanceID       string
}

// Load reads a .env file when present and then the process environment.
func Load(logger zerolog.Logger) (*Config, error) {
	log := logger.With().Str("component", "config").Logger()

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, relying on system environment variables")
	} else {
		log.Info().Msg("loaded .env file")
	}

	retention, err := time.ParseDuration(getEnv("ARCHIVE_RETENTION", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid ARCHIVE_RETENTION: %w", err)
	}

	maxConns, err := getEnvInt32("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	minConns, err := getEnvInt32("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:             getEnv("PORT", "3000"),
		Env:              getEnv("APP_ENV", "development"),
		Transport:        strings.ToLower(getEnv("TRANSPORT", TransportLocal)),
		RedisURL:         os.Getenv("REDIS_URL"),
		PubSubChannel:    getEnv("PUBSUB_CHANNEL", "chat-channel"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DBMaxConns:       maxConns,
		DBMinConns:       minConns,
		SQLitePath:       os.Getenv("SQLITE_PATH"),
		ArchiveRetention: retention,
		BotSchedule:      getEnv("BOT_SCHEDULE", "*/10 * * * * *"),
		BotSender:        getEnv("BOT_SENDER", "Cron Bot"),
		BotAutostart:     getEnvBool("BOT_AUTOSTART", false),
		AuthKey:          os.Getenv("AUTH_KEY"),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "*")),
		InstanceID:       getEnv("INSTANCE_ID", uuid.NewString()),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ev := log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("transport", cfg.Transport).
		Str("instance", cfg.InstanceID)
	if cfg.DatabaseURL != "" {
		ev = ev.Str("database", MaskDSN(cfg.DatabaseURL))
	}
	ev.Bool("admin_guard", cfg.AuthKey != "").Msg("configuration loaded")

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	switch c.Transport {
	case TransportLocal:
	case TransportRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when TRANSPORT=redis")
		}
		if c.PubSubChannel == "" {
			return errors.New("PUBSUB_CHANNEL cannot be empty")
		}
	default:
		return fmt.Errorf("unknown TRANSPORT %q (want %q or %q)", c.Transport, TransportLocal, TransportRedis)
	}
	if c.BotSchedule == "" {
		return errors.New("BOT_SCHEDULE cannot be empty")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid pool size: DB_MIN_CONNS=%d DB_MAX_CONNS=%d", c.DBMinConns, c.DBMaxConns)
	}
	if c.ArchiveRetention <= 0 {
		return errors.New("ARCHIVE_RETENTION must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// MaskDSN hides the credentials part of a connection string.
func MaskDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return "invalid-dsn-format"
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return dsn
	}
	return scheme + "://****:****@" + rest[at+1:]
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt32(key string, fallback int32) (int32, error) {
	value := getEnv(key, "")
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return int32(n), nil
}

func splitList(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
