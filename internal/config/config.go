// Package config loads server settings from the environment, with an optional
// .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/contacerta/reconciler/internal/matching"
)

type Config struct {
	Port      string `validate:"required,numeric"`
	DBPath    string `validate:"required"`
	UploadDir string `validate:"required"`

	JWTSecret string        `validate:"required,min=16"`
	TokenTTL  time.Duration `validate:"required"`

	LicenseFile      string
	LicensePublicKey string
	ClockGuardFile   string

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`

	Matching matching.Config
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envFloat returns nil when the variable is unset, so absent overrides keep
// the engine defaults.
func envFloat(key string) (*float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &v, nil
}

// Load reads the configuration. A .env file in the working directory is
// applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ttl := 8 * time.Hour
	if raw := os.Getenv("TOKEN_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("TOKEN_TTL: %w", err)
		}
		ttl = parsed
	}

	mcfg := matching.DefaultConfig()
	var err error
	if mcfg.AmountTolerance, err = envFloat("AMOUNT_TOLERANCE"); err != nil {
		return nil, err
	}
	if mcfg.SimilarityThreshold, err = envFloat("SIMILARITY_THRESHOLD"); err != nil {
		return nil, err
	}
	if mcfg.DatePenaltyPerDay, err = envFloat("DATE_PENALTY_PER_DAY"); err != nil {
		return nil, err
	}
	if mcfg.PotentialWindow, err = envFloat("POTENTIAL_WINDOW"); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:      envDefault("PORT", "8080"),
		DBPath:    envDefault("DB_PATH", "contacerta.db"),
		UploadDir: envDefault("UPLOAD_DIR", "uploads"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  ttl,

		LicenseFile:      envDefault("LICENSE_FILE", "licenca.json"),
		LicensePublicKey: envDefault("LICENSE_PUBLIC_KEY", "licenca_pub.pem"),
		ClockGuardFile:   envDefault("CLOCK_GUARD_FILE", ".clock.guard"),

		LogLevel:  envDefault("LOG_LEVEL", "info"),
		LogFormat: envDefault("LOG_FORMAT", "text"),

		Matching: mcfg,
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
