package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port            int    `mapstructure:"port"`
		AllowedOrigins  string `mapstructure:"allowed_origins"`
		BodyLimitMB     int    `mapstructure:"body_limit_mb"`
		RateLimitMax    int    `mapstructure:"rate_limit_max"`
		RateLimitWindow int    `mapstructure:"rate_limit_window_seconds"`
		PublicBaseURL   string `mapstructure:"public_base_url"`
		UpstreamTimeout int    `mapstructure:"upstream_timeout_seconds"`
	} `mapstructure:"server"`

	Database struct {
		DSN      string `mapstructure:"dsn"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Auth struct {
		// Shared secret of the identity provider's HS256 session tokens.
		JWTSecret string `mapstructure:"jwt_secret"`
		Issuer    string `mapstructure:"issuer"`
	} `mapstructure:"auth"`

	Cron struct {
		Secret     string `mapstructure:"secret"`
		SecretHash string `mapstructure:"secret_hash"`
	} `mapstructure:"cron"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	SMTP struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		From     string `mapstructure:"from"`
	} `mapstructure:"smtp"`

	Storage struct {
		Endpoint       string `mapstructure:"endpoint"`
		Region         string `mapstructure:"region"`
		Bucket         string `mapstructure:"bucket"`
		AccessKey      string `mapstructure:"access_key"`
		SecretKey      string `mapstructure:"secret_key"`
		PublicBaseURL  string `mapstructure:"public_base_url"`
		PresignMinutes int    `mapstructure:"presign_minutes"`
	} `mapstructure:"storage"`

	Payments struct {
		Provider string `mapstructure:"provider"` // stripe | razorpay
		Stripe   struct {
			SecretKey     string `mapstructure:"secret_key"`
			WebhookSecret string `mapstructure:"webhook_secret"`
		} `mapstructure:"stripe"`
		Razorpay struct {
			KeyID         string `mapstructure:"key_id"`
			KeySecret     string `mapstructure:"key_secret"`
			WebhookSecret string `mapstructure:"webhook_secret"`
		} `mapstructure:"razorpay"`
	} `mapstructure:"payments"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
		Output string `mapstructure:"output"`
	} `mapstructure:"log"`
}

// Load reads configs/config.yaml (optional), .env (optional) and the environment.
// Environment keys are the upper-cased dotted path, e.g. SERVER_PORT or PAYMENTS_STRIPE_SECRET_KEY.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile("configs/config.yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Debug().Msg("no config file found, using environment and defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", "*")
	v.SetDefault("server.body_limit_mb", 4)
	v.SetDefault("server.rate_limit_max", 60)
	v.SetDefault("server.rate_limit_window_seconds", 60)
	v.SetDefault("server.public_base_url", "http://localhost:3000")
	v.SetDefault("server.upstream_timeout_seconds", 15)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "invoicing")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("cron.secret", "")
	v.SetDefault("cron.secret_hash", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "invoices@localhost")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.presign_minutes", 15)

	v.SetDefault("payments.provider", "stripe")
	v.SetDefault("payments.stripe.secret_key", "")
	v.SetDefault("payments.stripe.webhook_secret", "")
	v.SetDefault("payments.razorpay.key_id", "")
	v.SetDefault("payments.razorpay.key_secret", "")
	v.SetDefault("payments.razorpay.webhook_secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	switch c.Payments.Provider {
	case "stripe", "razorpay":
	default:
		return errors.New("PAYMENTS_PROVIDER must be stripe or razorpay")
	}
	return nil
}

// UpstreamTimeout bounds every outbound call (email, processor, storage).
func (c *Config) UpstreamTimeout() time.Duration {
	if c.Server.UpstreamTimeout <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.UpstreamTimeout) * time.Second
}
