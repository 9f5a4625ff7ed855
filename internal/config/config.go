package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir      string        `mapstructure:"MIGRATIONS_DIR"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	JWTIssuer          string        `mapstructure:"JWT_ISSUER"`
	TokenTTL           time.Duration `mapstructure:"TOKEN_TTL"`
	CompletionBaseURL  string        `mapstructure:"COMPLETION_BASE_URL"`
	CompletionAPIKey   string        `mapstructure:"COMPLETION_API_KEY"`
	CompletionModel    string        `mapstructure:"COMPLETION_MODEL"`
	CompletionTimeout  time.Duration `mapstructure:"COMPLETION_TIMEOUT"`
	StorageDir         string        `mapstructure:"STORAGE_DIR"`
	PublicBaseURL      string        `mapstructure:"PUBLIC_BASE_URL"`
	TriageExtraPhrases []string      `mapstructure:"TRIAGE_EXTRA_PHRASES"`
	ProfileRetries     int           `mapstructure:"PROFILE_RETRY_ATTEMPTS"`
	ExpirySchedule     string        `mapstructure:"APPOINTMENT_EXPIRY_SCHEDULE"`
}

// devJWTSecret signs tokens when ENV=development and no secret is configured.
const devJWTSecret = "carebridge-development-secret-do-not-deploy"

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("CORS_ORIGINS", "http://localhost:8081")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("JWT_ISSUER", "carebridge")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("COMPLETION_BASE_URL", "https://models.inference.ai.azure.com")
	v.SetDefault("COMPLETION_MODEL", "gpt-4o")
	v.SetDefault("COMPLETION_TIMEOUT", "60s")
	v.SetDefault("STORAGE_DIR", "./storage")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8000")
	v.SetDefault("PROFILE_RETRY_ATTEMPTS", 3)
	v.SetDefault("APPOINTMENT_EXPIRY_SCHEDULE", "@hourly")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"MIGRATIONS_DIR", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"JWT_SECRET", "JWT_ISSUER", "TOKEN_TTL",
		"COMPLETION_BASE_URL", "COMPLETION_API_KEY", "COMPLETION_MODEL", "COMPLETION_TIMEOUT",
		"STORAGE_DIR", "PUBLIC_BASE_URL", "TRIAGE_EXTRA_PHRASES",
		"PROFILE_RETRY_ATTEMPTS", "APPOINTMENT_EXPIRY_SCHEDULE",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.TriageExtraPhrases = splitList(cfg.TriageExtraPhrases, v.GetString("TRIAGE_EXTRA_PHRASES"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.IsDev() {
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

// splitList normalises a comma separated env value. Viper may hand back the
// raw string as one element or already split on commas without trimming, so
// the pieces are rejoined and split again.
func splitList(decoded []string, raw string) []string {
	joined := strings.Join(decoded, ",")
	if joined == "" {
		joined = raw
	}
	var out []string
	for _, item := range strings.Split(joined, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development a
// real signing secret is required, and production refuses to start without a
// completion credential.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
		}
		if c.JWTSecret == devJWTSecret {
			return fmt.Errorf("JWT_SECRET must not be the development secret when ENV=%q", c.Env)
		}
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.JWTSecret))
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}

	if c.IsProduction() && c.CompletionAPIKey == "" {
		return fmt.Errorf("COMPLETION_API_KEY is required in production")
	}
	if c.CompletionTimeout <= 0 {
		return fmt.Errorf("COMPLETION_TIMEOUT must be positive, got %s", c.CompletionTimeout)
	}

	if c.ProfileRetries < 1 {
		return fmt.Errorf("PROFILE_RETRY_ATTEMPTS must be at least 1, got %d", c.ProfileRetries)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	return nil
}
