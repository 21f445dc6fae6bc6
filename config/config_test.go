package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("INSTANCE_ID", "node-a")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "node-a", cfg.Server.InstanceID)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, "storefront-node-a", cfg.Kafka.ConsumerGroup)
	assert.False(t, cfg.Remote.Enabled)
	assert.Equal(t, time.Minute, cfg.RefreshInterval())
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())

	policy := cfg.Policy()
	assert.Equal(t, time.Hour, policy.CacheValidity)
	assert.Equal(t, 5*time.Minute, policy.Freshness)
	assert.Equal(t, 1000.0, policy.FreeShippingThreshold)
	assert.Equal(t, 50.0, policy.ShippingFee)
	assert.Equal(t, 10, policy.LowStockThreshold)
	assert.Equal(t, 100, policy.TransactionLogCapacity)
	assert.Equal(t, "DELETE PERMANENTLY", policy.HardDeletePhrase)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("KAFKA_CONSUMER_GROUP", "shared")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example.com,https://admin.example.com")
	t.Setenv("CACHE_TTL_SECONDS", "120")
	t.Setenv("FREE_SHIPPING_THRESHOLD", "750.5")
	t.Setenv("REMOTE_ENABLED", "true")
	t.Setenv("LOW_STOCK_THRESHOLD", "not-a-number")

	cfg := Load()

	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "shared", cfg.Kafka.ConsumerGroup)
	assert.Len(t, cfg.Server.AllowedOrigins, 2)
	assert.True(t, cfg.Remote.Enabled)

	policy := cfg.Policy()
	assert.Equal(t, 2*time.Minute, policy.CacheValidity)
	assert.Equal(t, 750.5, policy.FreeShippingThreshold)
	assert.Equal(t, 10, policy.LowStockThreshold)
}
