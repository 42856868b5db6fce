package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the API server. Every field can be given
// as a flag or through the environment variable named in its tag.
type Config struct {
	HTTPAddr        string        `name:"http-addr" env:"HTTP_ADDR" default:":5000" help:"Address the HTTP API listens on."`
	DBDriver        string        `name:"db-driver" env:"DB_DRIVER" enum:"sqlite,postgres,mongo" default:"sqlite" help:"Storage backend (sqlite, postgres, mongo)."`
	DatabaseURL     string        `name:"database-url" env:"DATABASE_URL" default:"todo.db" help:"SQLite path, Postgres DSN or MongoDB URI."`
	MongoDatabase   string        `name:"mongo-database" env:"MONGODB_DATABASE" default:"todo" help:"MongoDB database name."`
	JWTSecret       string        `name:"jwt-secret" env:"JWT_SECRET" help:"HMAC secret for access tokens."`
	TokenTTL        time.Duration `name:"token-ttl" env:"TOKEN_TTL" default:"24h" help:"Access token lifetime."`
	CORSOrigins     []string      `name:"cors-origins" env:"CORS_ORIGINS" default:"http://localhost:3000" help:"Allowed browser origins."`
	Timezone        string        `name:"timezone" env:"APP_TIMEZONE" default:"UTC" help:"Default timezone for new users and scheduled jobs."`
	TelegramToken   string        `name:"telegram-token" env:"TELEGRAM_TOKEN" help:"Telegram bot token; empty disables the bot."`
	DigestTime      string        `name:"digest-time" env:"DIGEST_TIME" default:"08:00" help:"Daily digest time (HH:MM)."`
	LogLevel        string        `name:"log-level" env:"LOG_LEVEL" enum:"debug,info,warn,error" default:"info" help:"Log level."`
	LogFile         string        `name:"log-file" env:"LOG_FILE" help:"Optional rotating log file."`
	ShutdownTimeout time.Duration `name:"shutdown-timeout" env:"SHUTDOWN_TIMEOUT" default:"10s" help:"Graceful shutdown timeout."`
}

// LoadDotEnv reads variables from the given files (.env by default) without
// overriding ones already set. Missing files are ignored.
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

// Load parses args (without the program name) on top of the environment.
func Load(args []string) (Config, error) {
	var cfg Config
	parser, err := kong.New(&cfg,
		kong.Name("todoapi"),
		kong.Description("Personal todo list REST API."),
	)
	if err != nil {
		return cfg, fmt.Errorf("build parser: %w", err)
	}
	if _, err := parser.Parse(args); err != nil {
		return cfg, err
	}

	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.TokenTTL <= 0 {
		return cfg, fmt.Errorf("TOKEN_TTL must be positive")
	}
	if _, _, err := ParseClock(cfg.DigestTime); err != nil {
		return cfg, err
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return cfg, fmt.Errorf("invalid APP_TIMEZONE %q: %w", cfg.Timezone, err)
	}

	return cfg, nil
}

// Location returns the configured default timezone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseClock parses an HH:MM time of day.
func ParseClock(value string) (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	return parsed.Hour(), parsed.Minute(), nil
}
