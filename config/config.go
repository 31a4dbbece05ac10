package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	devJWTSecret     = "dev-access-secret"
	devRefreshSecret = "dev-refresh-secret"
)

type Config struct {
	Server    ServerConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Payment   PaymentConfig
	RateLimit RateLimitConfig
	Observ    ObservabilityConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	CORSOrigin   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoConfig struct {
	Driver   string
	URI      string
	Database string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

type AuthConfig struct {
	JWTSecret       string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
}

type PaymentConfig struct {
	Verifier       string
	WebhookSecret  string
	GatewayURL     string
	GatewayTimeout time.Duration
}

type RateLimitConfig struct {
	AuthPerMinute int
	AuthBurst     int
}

type ObservabilityConfig struct {
	TracingEnabled bool
	JaegerEndpoint string
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "9000"),
			Env:          getEnv("ENV", "development"),
			CORSOrigin:   getEnv("CORS_ORIGIN", "http://localhost:5173"),
			ReadTimeout:  getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		},
		Mongo: MongoConfig{
			Driver:   getEnv("STORE_DRIVER", "mongo"),
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "storefront"),
		},
		Redis: RedisConfig{
			Enabled:  getBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled:       getBool("KAFKA_ENABLED", true),
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:         getEnv("KAFKA_TOPIC_STORE_EVENTS", "store-events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "storefront-sales"),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", devJWTSecret),
			RefreshSecret:   getEnv("REFRESH_SECRET", devRefreshSecret),
			AccessTokenTTL:  getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
			BcryptCost:      getInt("BCRYPT_COST", 10),
		},
		Payment: PaymentConfig{
			Verifier:       getEnv("PAYMENT_VERIFIER", "trust"),
			WebhookSecret:  getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			GatewayURL:     getEnv("PAYMENT_GATEWAY_URL", ""),
			GatewayTimeout: getDuration("PAYMENT_GATEWAY_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute: getInt("AUTH_RATE_PER_MINUTE", 20),
			AuthBurst:     getInt("AUTH_RATE_BURST", 10),
		},
		Observ: ObservabilityConfig{
			TracingEnabled: getBool("TRACING_ENABLED", false),
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		},
	}

	log.Printf("Config loaded: env=%s, port=%s, store=%s", cfg.Server.Env, cfg.Server.Port, cfg.Mongo.Driver)
	return cfg
}

// Validate rejects configurations the server must not start with
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" || c.Auth.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET and REFRESH_SECRET are required"))
	}
	if c.Auth.JWTSecret == c.Auth.RefreshSecret {
		errs = append(errs, errors.New("JWT_SECRET and REFRESH_SECRET must differ"))
	}
	if c.IsProduction() && (c.Auth.JWTSecret == devJWTSecret || c.Auth.RefreshSecret == devRefreshSecret) {
		errs = append(errs, errors.New("development token secrets are not allowed in production"))
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}

	switch c.Payment.Verifier {
	case "trust":
	case "hmac":
		if c.Payment.WebhookSecret == "" {
			errs = append(errs, errors.New("PAYMENT_WEBHOOK_SECRET is required for the hmac verifier"))
		}
	case "gateway":
		if c.Payment.GatewayURL == "" {
			errs = append(errs, errors.New("PAYMENT_GATEWAY_URL is required for the gateway verifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PAYMENT_VERIFIER %q", c.Payment.Verifier))
	}

	switch c.Mongo.Driver {
	case "mongo", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Mongo.Driver))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether ENV=production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return v
}

func getBool(key string, defaultVal bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return v
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return v
}
