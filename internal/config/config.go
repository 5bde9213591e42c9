package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret      string   `mapstructure:"JWT_SECRET"`
	JWTTTLHours    int      `mapstructure:"JWT_TTL_HOURS"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	DifyBaseURL    string   `mapstructure:"DIFY_BASE_URL"`
	DifyAPIKey     string   `mapstructure:"DIFY_API_KEY"`
	CaptchaWidth   int      `mapstructure:"CAPTCHA_WIDTH"`
	CaptchaHeight  int      `mapstructure:"CAPTCHA_HEIGHT"`
	CaptchaLength  int      `mapstructure:"CAPTCHA_LENGTH"`
	CaptchaTTLSecs int      `mapstructure:"CAPTCHA_TTL_SECONDS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("JWT_TTL_HOURS", 72)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("CAPTCHA_WIDTH", 120)
	v.SetDefault("CAPTCHA_HEIGHT", 40)
	v.SetDefault("CAPTCHA_LENGTH", 4)
	v.SetDefault("CAPTCHA_TTL_SECONDS", 120)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("JWT_TTL_HOURS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("DIFY_BASE_URL")
	v.BindEnv("DIFY_API_KEY")
	v.BindEnv("CAPTCHA_WIDTH")
	v.BindEnv("CAPTCHA_HEIGHT")
	v.BindEnv("CAPTCHA_LENGTH")
	v.BindEnv("CAPTCHA_TTL_SECONDS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT secret must be set so tokens cannot be forged, and the Dify relay
// must be either fully configured or fully absent.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if c.JWTTTLHours <= 0 {
		return fmt.Errorf("JWT_TTL_HOURS must be positive, got %d", c.JWTTTLHours)
	}
	if (c.DifyBaseURL == "") != (c.DifyAPIKey == "") {
		return fmt.Errorf("DIFY_BASE_URL and DIFY_API_KEY must be set together")
	}
	if c.CaptchaLength < 1 || c.CaptchaLength > 8 {
		return fmt.Errorf("CAPTCHA_LENGTH must be between 1 and 8, got %d", c.CaptchaLength)
	}
	return nil
}
