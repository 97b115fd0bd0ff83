package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	OrderStoreMongo    = "mongo"
	OrderStorePostgres = "postgres"
)

type Config struct {
	Env      string
	LogLevel string

	HTTPPort        string
	GRPCPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	MongoURI    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string

	OrderStore           string
	DBHost               string
	DBPort               int
	DBUser               string
	DBPassword           string
	DBName               string
	OrdersMigrationsPath string

	CatalogDBPath         string
	CatalogMigrationsPath string

	SyncDebounce    time.Duration
	SyncSaveTimeout time.Duration
	SessionTTL      time.Duration

	PushPaymentTimeout time.Duration

	Currency         string
	ShippingFlat     decimal.Decimal
	FreeShippingOver decimal.Decimal
	TaxRate          decimal.Decimal
}

// Load reads the configuration from the environment, after loading a .env
// file when one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		GRPCPort:        getEnv("GRPC_PORT", "50060"),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "storefront"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		KafkaBrokers: getList("KAFKA_BROKERS"),

		OrderStore:           strings.ToLower(getEnv("ORDER_STORE", OrderStoreMongo)),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getInt("DB_PORT", 5432),
		DBUser:               getEnv("DB_USER", "postgres"),
		DBPassword:           getEnv("DB_PASSWORD", "postgres"),
		DBName:               getEnv("DB_NAME", "orders"),
		OrdersMigrationsPath: getEnv("ORDERS_MIGRATIONS_PATH", "internal/repository/migrations"),

		CatalogDBPath:         getEnv("CATALOG_DB_PATH", "catalog.db"),
		CatalogMigrationsPath: getEnv("CATALOG_MIGRATIONS_PATH", "internal/catalog/migrations"),

		SyncDebounce:    getDuration("SYNC_DEBOUNCE", 500*time.Millisecond),
		SyncSaveTimeout: getDuration("SYNC_SAVE_TIMEOUT", 10*time.Second),
		SessionTTL:      getDuration("SESSION_TTL", 30*time.Minute),

		PushPaymentTimeout: getDuration("PUSH_PAYMENT_TIMEOUT", 2*time.Minute),

		Currency:         getEnv("CURRENCY", "USD"),
		ShippingFlat:     getDecimal("SHIPPING_FLAT", decimal.RequireFromString("5.00")),
		FreeShippingOver: getDecimal("FREE_SHIPPING_OVER", decimal.RequireFromString("50.00")),
		TaxRate:          getDecimal("TAX_RATE", decimal.RequireFromString("0.08")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.OrderStore {
	case OrderStoreMongo, OrderStorePostgres:
	default:
		return fmt.Errorf("ORDER_STORE must be %q or %q, got %q", OrderStoreMongo, OrderStorePostgres, c.OrderStore)
	}
	if c.TaxRate.IsNegative() || c.ShippingFlat.IsNegative() || c.FreeShippingOver.IsNegative() {
		return errors.New("pricing values must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	// bare numbers are milliseconds
	if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func getList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
