package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, OrderStoreMongo, cfg.OrderStore)
	assert.Equal(t, 500*time.Millisecond, cfg.SyncDebounce)
	assert.Equal(t, 2*time.Minute, cfg.PushPaymentTimeout)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.True(t, cfg.TaxRate.Equal(decimal.RequireFromString("0.08")))
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ORDER_STORE", "Postgres")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("SYNC_DEBOUNCE", "250")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("FREE_SHIPPING_OVER", "75.50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, OrderStorePostgres, cfg.OrderStore)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 250*time.Millisecond, cfg.SyncDebounce)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.FreeShippingOver.Equal(decimal.RequireFromString("75.50")))
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REQUEST_TIMEOUT", "soon")
	t.Setenv("TAX_RATE", "eight percent")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.TaxRate.Equal(decimal.RequireFromString("0.08")))
}

func TestLoad_UnknownOrderStore(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ORDER_STORE", "cassandra")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MONGO_DB_NAME=fromfile\n"), 0o600))
	// registers a restore, then leaves the key unset so the file wins
	t.Setenv("MONGO_DB_NAME", "")
	require.NoError(t, os.Unsetenv("MONGO_DB_NAME"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fromfile", cfg.MongoDBName)
}
