package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const envPrefix = "BOOKING"

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port            string
	AppEnv          string
	DBConfig        DatabaseConfig
	JWTConfig       JWTConfig
	KafkaConfig     KafkaConfig
	RedisConfig     RedisConfig
	PricingConfig   PricingConfig
	LifecycleConfig LifecycleConfig
	RateLimitConfig RateLimitConfig

	// CORSAllowOrigins lists browser origins allowed to call the API; "*" allows any.
	CORSAllowOrigins []string
}

// DatabaseConfig describes the PostgreSQL connection and pool.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the key/value connection string used by the gorm postgres driver.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// URL returns the connection URL used by golang-migrate.
func (c DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Name,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// JWTConfig holds the shared secret used to verify access tokens.
type JWTConfig struct {
	Secret string
	Issuer string
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	GroupID string
}

type RedisConfig struct {
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	CatalogTTL time.Duration
}

// PricingConfig bounds the price multiplier accepted on bookings.
type PricingConfig struct {
	MultiplierMin decimal.Decimal
	MultiplierMax decimal.Decimal
}

type LifecycleConfig struct {
	// CancellationCutoff is how long before scheduled_at a confirmed booking
	// can still be cancelled.
	CancellationCutoff time.Duration
	ExpiryInterval     time.Duration
	ExpiryBatchSize    int
}

// RateLimitConfig throttles claim attempts per provider.
type RateLimitConfig struct {
	ClaimsPerSecond float64
	ClaimBurst      int
}

// Load reads configuration from BOOKING_* environment variables and an
// optional config.yaml.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	minMultiplier, err := decimal.NewFromString(v.GetString("pricing.multiplier_min"))
	if err != nil {
		return nil, fmt.Errorf("invalid pricing.multiplier_min: %w", err)
	}
	maxMultiplier, err := decimal.NewFromString(v.GetString("pricing.multiplier_max"))
	if err != nil {
		return nil, fmt.Errorf("invalid pricing.multiplier_max: %w", err)
	}
	if minMultiplier.GreaterThan(maxMultiplier) {
		return nil, fmt.Errorf("pricing.multiplier_min %s exceeds multiplier_max %s", minMultiplier, maxMultiplier)
	}

	cfg := &ServiceConfig{
		Port:   v.GetString("service_port"),
		AppEnv: v.GetString("app_env"),
		DBConfig: DatabaseConfig{
			Host:            v.GetString("db.host"),
			Port:            v.GetInt("db.port"),
			User:            v.GetString("db.user"),
			Password:        v.GetString("db.password"),
			Name:            v.GetString("db.name"),
			SSLMode:         v.GetString("db.sslmode"),
			MaxOpenConns:    v.GetInt("db.max_open_conns"),
			MaxIdleConns:    v.GetInt("db.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db.conn_max_lifetime"),
		},
		JWTConfig: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		KafkaConfig: KafkaConfig{
			Enabled: v.GetBool("kafka.enabled"),
			Brokers: splitList(v.GetString("kafka.brokers")),
			GroupID: v.GetString("kafka.group_id"),
		},
		RedisConfig: RedisConfig{
			Enabled:    v.GetBool("redis.enabled"),
			Addr:       v.GetString("redis.addr"),
			Password:   v.GetString("redis.password"),
			DB:         v.GetInt("redis.db"),
			CatalogTTL: v.GetDuration("redis.catalog_ttl"),
		},
		PricingConfig: PricingConfig{
			MultiplierMin: minMultiplier,
			MultiplierMax: maxMultiplier,
		},
		LifecycleConfig: LifecycleConfig{
			CancellationCutoff: v.GetDuration("lifecycle.cancellation_cutoff"),
			ExpiryInterval:     v.GetDuration("lifecycle.expiry_interval"),
			ExpiryBatchSize:    v.GetInt("lifecycle.expiry_batch_size"),
		},
		RateLimitConfig: RateLimitConfig{
			ClaimsPerSecond: v.GetFloat64("ratelimit.claims_per_second"),
			ClaimBurst:      v.GetInt("ratelimit.claim_burst"),
		},
		CORSAllowOrigins: splitList(v.GetString("cors.allow_origins")),
	}

	if cfg.LifecycleConfig.ExpiryInterval <= 0 {
		return nil, fmt.Errorf("lifecycle.expiry_interval must be positive, got %s", cfg.LifecycleConfig.ExpiryInterval)
	}
	if cfg.LifecycleConfig.ExpiryBatchSize <= 0 {
		return nil, fmt.Errorf("lifecycle.expiry_batch_size must be positive, got %d", cfg.LifecycleConfig.ExpiryBatchSize)
	}
	if cfg.AppEnv == "production" && cfg.JWTConfig.Secret == "" {
		return nil, errors.New("jwt.secret must be set in production")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_port", "8002")
	v.SetDefault("app_env", "development")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "booking_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")

	v.SetDefault("jwt.secret", "dev-secret-change-me")
	v.SetDefault("jwt.issuer", "")

	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.group_id", "service-booking")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.catalog_ttl", "5m")

	v.SetDefault("pricing.multiplier_min", "0.9")
	v.SetDefault("pricing.multiplier_max", "1.5")

	v.SetDefault("lifecycle.cancellation_cutoff", "0s")
	v.SetDefault("lifecycle.expiry_interval", "1m")
	v.SetDefault("lifecycle.expiry_batch_size", 100)

	v.SetDefault("ratelimit.claims_per_second", 2)
	v.SetDefault("ratelimit.claim_burst", 5)

	v.SetDefault("cors.allow_origins", "*")
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
