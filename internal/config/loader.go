package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the
// marketplace service.
type Config struct {
	HTTPPort           int
	LogLevel           string
	SQLiteDSN          string
	SessionSecret      string
	SessionTTL         time.Duration
	Timezone           string
	PaymentsServerKey  string
	PaymentsProduction bool
	AIEndpoint         string
	AIAPIKey           string
}

// Load reads a .env file when present, then parses configuration from the
// process environment.
//
// The loader applies defaults for optional fields while validating required
// values. ABLE_SESSION_SECRET is the only hard requirement; payments and AI
// integrations stay disabled when their keys are absent.
func Load() (Config, error) {
	// Missing .env is fine; the environment may be set by the runtime.
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:   8080,
		LogLevel:   "info",
		SQLiteDSN:  "file:able.db?_foreign_keys=on",
		SessionTTL: 24 * time.Hour,
		Timezone:   "Europe/London",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("ABLE_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "ABLE_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if level := strings.TrimSpace(os.Getenv("ABLE_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if dsn := strings.TrimSpace(os.Getenv("ABLE_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := strings.TrimSpace(os.Getenv("ABLE_SESSION_SECRET")); secret == "" {
		missing = append(missing, "ABLE_SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}

	if ttlValue := strings.TrimSpace(os.Getenv("ABLE_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "ABLE_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if tz := strings.TrimSpace(os.Getenv("ABLE_TIMEZONE")); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			invalid = append(invalid, "ABLE_TIMEZONE")
		} else {
			cfg.Timezone = tz
		}
	}

	cfg.PaymentsServerKey = strings.TrimSpace(os.Getenv("ABLE_PAYMENTS_SERVER_KEY"))
	if prodValue := strings.TrimSpace(os.Getenv("ABLE_PAYMENTS_PRODUCTION")); prodValue != "" {
		production, err := strconv.ParseBool(prodValue)
		if err != nil {
			invalid = append(invalid, "ABLE_PAYMENTS_PRODUCTION")
		} else {
			cfg.PaymentsProduction = production
		}
	}

	cfg.AIEndpoint = strings.TrimSpace(os.Getenv("ABLE_AI_ENDPOINT"))
	cfg.AIAPIKey = strings.TrimSpace(os.Getenv("ABLE_AI_API_KEY"))

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Location resolves the configured timezone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
