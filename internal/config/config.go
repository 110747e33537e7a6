package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	LogLevel  string
	LogFormat string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	// Optional. Empty disables the redis-backed resolver lock.
	RedisAddr     string
	RedisPassword string

	POSBaseURL     string
	POSAccessToken string
	POSStoreID     string
	POSTimeout     time.Duration

	OrderSourceBaseURL string
	OrderSourceAPIKey  string
	OrderSourceTimeout time.Duration

	WebhookVerifyEnabled bool
	WebhookSecret        string

	RetryMaxAttempts int
	RetryBackoffBase time.Duration
	RetryInterval    time.Duration
	RetryBatchSize   int

	AutoCreateEnabled  bool
	AutoCreateCategory string
	SKUCounterSeed     int64

	// Pickup orders may carry a staff tender encoded as the customer
	// first name. Both behaviors are policy flags, never hardcoded.
	TenderFirstNameMatch        bool
	SkipAutoCreateOnNamedTender bool

	DeliveryFeeItemName string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "orderbridge"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "orderbridge"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		POSBaseURL:     getenv("POS_BASE_URL", "https://api.loyverse.com/v1.0"),
		POSAccessToken: strings.TrimSpace(getenv("POS_ACCESS_TOKEN", "")),
		POSStoreID:     strings.TrimSpace(getenv("POS_STORE_ID", "")),
		POSTimeout:     getenvDuration("POS_TIMEOUT", 30*time.Second),

		OrderSourceBaseURL: getenv("ORDER_SOURCE_BASE_URL", "https://pos.globalfoodsoft.com/pos/order"),
		OrderSourceAPIKey:  strings.TrimSpace(getenv("ORDER_SOURCE_API_KEY", "")),
		OrderSourceTimeout: getenvDuration("ORDER_SOURCE_TIMEOUT", 30*time.Second),

		WebhookVerifyEnabled: getenvBool("WEBHOOK_VERIFY_ENABLED", false),
		WebhookSecret:        strings.TrimSpace(getenv("WEBHOOK_SECRET", "")),

		RetryMaxAttempts: getenvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBackoffBase: getenvDuration("RETRY_BACKOFF_BASE", 30*time.Second),
		RetryInterval:    getenvDuration("RETRY_INTERVAL", time.Minute),
		RetryBatchSize:   getenvInt("RETRY_BATCH_SIZE", 20),

		AutoCreateEnabled:  getenvBool("AUTO_CREATE_ENABLED", true),
		AutoCreateCategory: getenv("AUTO_CREATE_CATEGORY", "مشروبات"),
		SKUCounterSeed:     getenvInt64("SKU_COUNTER_SEED", 10001),

		TenderFirstNameMatch:        getenvBool("TENDER_FIRST_NAME_MATCH", true),
		SkipAutoCreateOnNamedTender: getenvBool("SKIP_AUTOCREATE_ON_NAMED_TENDER", true),

		DeliveryFeeItemName: getenv("DELIVERY_FEE_ITEM_NAME", "Delivery Fee"),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
