package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Argon2   Argon2Config
	Stripe   StripeConfig
	Ledger   LedgerConfig
	App      AppConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string // "postgres" or "memory"
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	SecretKey string
	Expiry    time.Duration
}

type Argon2Config struct {
	Time       uint32
	Memory     uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength int
}

type StripeConfig struct {
	WebhookSecret     string
	WebhookTolerance  time.Duration
	PriceBasic        string
	PricePro          string
	PriceEnterprise   string
	MaxWebhookBodyLen int64
}

type LedgerConfig struct {
	MinTransfer         int64
	WelcomeBonus        int64
	TransferRateLimit   int
	TransferRateWindow  time.Duration
	DefaultHistoryLimit int
	MaxHistoryLimit     int
	RetryAttempts       int
	RetryBaseDelay      time.Duration
}

type AppConfig struct {
	URL string
}

var envBindings = map[string]string{
	"server.port":                 "PORT",
	"server.allowed_origins":      "ALLOWED_ORIGINS",
	"database.driver":             "DATABASE_DRIVER",
	"database.host":               "DATABASE_HOST",
	"database.port":               "DATABASE_PORT",
	"database.user":               "DATABASE_USER",
	"database.password":           "DATABASE_PASSWORD",
	"database.name":               "DATABASE_NAME",
	"database.ssl_mode":           "DATABASE_SSL_MODE",
	"database.auto_migrate":       "DATABASE_AUTO_MIGRATE",
	"redis.host":                  "REDIS_HOST",
	"redis.port":                  "REDIS_PORT",
	"redis.password":              "REDIS_PASSWORD",
	"redis.db":                    "REDIS_DB",
	"jwt.secret_key":              "JWT_SECRET_KEY",
	"jwt.expiry_hours":            "JWT_EXPIRY_HOURS",
	"argon2.time":                 "ARGON2_TIME",
	"argon2.memory":               "ARGON2_MEMORY",
	"argon2.threads":              "ARGON2_THREADS",
	"argon2.key_length":           "ARGON2_KEY_LENGTH",
	"argon2.salt_length":          "ARGON2_SALT_LENGTH",
	"stripe.webhook_secret":       "STRIPE_WEBHOOK_SECRET",
	"stripe.price_basic":          "STRIPE_PRICE_BASIC",
	"stripe.price_pro":            "STRIPE_PRICE_PRO",
	"stripe.price_enterprise":     "STRIPE_PRICE_ENTERPRISE",
	"ledger.min_transfer":         "FATI_MIN_TRANSFER",
	"ledger.welcome_bonus":        "FATI_WELCOME_BONUS",
	"ledger.transfer_rate_limit":  "FATI_TRANSFER_RATE_LIMIT",
	"ledger.transfer_rate_window": "FATI_TRANSFER_RATE_WINDOW",
	"app.url":                     "NEXT_PUBLIC_APP_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", "https://*,http://*")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "fati_ledger")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret_key", "change-me")
	v.SetDefault("jwt.expiry_hours", 24)

	v.SetDefault("argon2.time", 1)
	v.SetDefault("argon2.memory", 64*1024)
	v.SetDefault("argon2.threads", 4)
	v.SetDefault("argon2.key_length", 32)
	v.SetDefault("argon2.salt_length", 16)

	v.SetDefault("stripe.webhook_tolerance", 5*time.Minute)
	v.SetDefault("stripe.max_webhook_body", 65536)

	v.SetDefault("ledger.min_transfer", 10)
	v.SetDefault("ledger.welcome_bonus", 0)
	v.SetDefault("ledger.transfer_rate_limit", 20)
	v.SetDefault("ledger.transfer_rate_window", time.Hour)
	v.SetDefault("ledger.default_history_limit", 50)
	v.SetDefault("ledger.max_history_limit", 200)
	v.SetDefault("ledger.retry_attempts", 3)
	v.SetDefault("ledger.retry_base_delay", 50*time.Millisecond)

	v.SetDefault("app.url", "http://localhost:3000")
}

// Load reads configuration from the optional .env file at path and the
// environment. Environment variables win over the file.
func Load(path string) *Config {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()
	for key, env := range envBindings {
		v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		log.Printf("[CONFIG] Config file not found, using defaults: %v", err)
	}

	// .env files use the environment variable names; lift them onto the
	// dotted keys below the environment in precedence.
	for key, env := range envBindings {
		if fileValue := v.Get(strings.ToLower(env)); fileValue != nil {
			v.SetDefault(key, fileValue)
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			AllowedOrigins:  splitList(v.GetString("server.allowed_origins")),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetString("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			Name:            v.GetString("database.name"),
			SSLMode:         v.GetString("database.ssl_mode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetString("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			SecretKey: v.GetString("jwt.secret_key"),
			Expiry:    time.Duration(v.GetInt("jwt.expiry_hours")) * time.Hour,
		},
		Argon2: Argon2Config{
			Time:       v.GetUint32("argon2.time"),
			Memory:     v.GetUint32("argon2.memory"),
			Threads:    uint8(v.GetUint("argon2.threads")),
			KeyLength:  v.GetUint32("argon2.key_length"),
			SaltLength: v.GetInt("argon2.salt_length"),
		},
		Stripe: StripeConfig{
			WebhookSecret:     v.GetString("stripe.webhook_secret"),
			WebhookTolerance:  v.GetDuration("stripe.webhook_tolerance"),
			PriceBasic:        v.GetString("stripe.price_basic"),
			PricePro:          v.GetString("stripe.price_pro"),
			PriceEnterprise:   v.GetString("stripe.price_enterprise"),
			MaxWebhookBodyLen: v.GetInt64("stripe.max_webhook_body"),
		},
		Ledger: LedgerConfig{
			MinTransfer:         v.GetInt64("ledger.min_transfer"),
			WelcomeBonus:        v.GetInt64("ledger.welcome_bonus"),
			TransferRateLimit:   v.GetInt("ledger.transfer_rate_limit"),
			TransferRateWindow:  v.GetDuration("ledger.transfer_rate_window"),
			DefaultHistoryLimit: v.GetInt("ledger.default_history_limit"),
			MaxHistoryLimit:     v.GetInt("ledger.max_history_limit"),
			RetryAttempts:       v.GetInt("ledger.retry_attempts"),
			RetryBaseDelay:      v.GetDuration("ledger.retry_base_delay"),
		},
		App: AppConfig{
			URL: strings.TrimRight(v.GetString("app.url"), "/"),
		},
	}
}

// Default returns the configuration built from defaults only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	return FromViper(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
