package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Port         string        `mapstructure:"PORT"`
	Env          string        `mapstructure:"ENV"`
	LogLevel     string        `mapstructure:"LOG_LEVEL"`
	GinMode      string        `mapstructure:"GIN_MODE"`
	ModelBaseURL string        `mapstructure:"MODEL_BASE_URL"`
	ModelTimeout time.Duration `mapstructure:"MODEL_TIMEOUT"`
	EnableDB     bool          `mapstructure:"ENABLE_DB"`
	DatabaseURL  string        `mapstructure:"DATABASE_URL"`
	CORSOrigins  []string      `mapstructure:"CORS_ORIGINS"`
	MaxBodyBytes int64         `mapstructure:"MAX_BODY_BYTES"`
	FormIdleTTL  time.Duration `mapstructure:"FORM_IDLE_TTL"`
	MaxOpenForms int           `mapstructure:"MAX_OPEN_FORMS"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "GIN_MODE", "MODEL_BASE_URL", "MODEL_TIMEOUT",
	"ENABLE_DB", "DATABASE_URL", "CORS_ORIGINS", "MAX_BODY_BYTES",
	"FORM_IDLE_TTL", "MAX_OPEN_FORMS",
}

// Load reads an optional .env file, then the environment, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("MODEL_BASE_URL", "http://localhost:5000")
	v.SetDefault("MODEL_TIMEOUT", 10*time.Second)
	v.SetDefault("ENABLE_DB", false)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("MAX_BODY_BYTES", 1<<20)
	v.SetDefault("FORM_IDLE_TTL", 30*time.Minute)
	v.SetDefault("MAX_OPEN_FORMS", 10000)

	// Unmarshal only sees keys viper knows about.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitOrigins(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitOrigins flattens comma separated entries and drops blanks, so a
// trailing comma in CORS_ORIGINS is harmless.
func splitOrigins(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, o := range strings.Split(entry, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Level is the parsed LOG_LEVEL. Validate has already rejected bad values.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (c *Config) Validate() error {
	if c.EnableDB && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}
	if c.ModelTimeout <= 0 {
		return fmt.Errorf("MODEL_TIMEOUT must be positive, got %s", c.ModelTimeout)
	}
	u, err := url.Parse(c.ModelBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("MODEL_BASE_URL must be an absolute http(s) URL, got %q", c.ModelBaseURL)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.FormIdleTTL <= 0 {
		return fmt.Errorf("FORM_IDLE_TTL must be positive, got %s", c.FormIdleTTL)
	}
	if c.MaxOpenForms <= 0 {
		return fmt.Errorf("MAX_OPEN_FORMS must be positive, got %d", c.MaxOpenForms)
	}
	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must list at least one origin")
	}
	for _, o := range c.CORSOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("CORS_ORIGINS entry %q must be * or start with http:// or https://", o)
		}
	}
	switch c.GinMode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("GIN_MODE must be debug, release or test, got %q", c.GinMode)
	}
	return nil
}
