package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "APP_ENV", "LOG_LEVEL", "ADMIN_EMAIL", "ADMIN_PASSWORD", "SESSION_SECRET",
		"DB_PATH", "PORT", "KAFKA_BROKERS", "KAFKA_TOPIC", "SEED_REFERENCE_DATA",
	} {
		t.Setenv(k, "")
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./dev.db", cfg.DBPath)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "shipment-events", cfg.KafkaTopic)
	assert.True(t, cfg.IsDev())
	assert.True(t, cfg.SeedReferenceData)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, "parcelrate.yaml", `
app_env: production
port: "9000"
db_path: /var/lib/parcelrate.db
admin:
  email: admin@example.com
kafka:
  brokers: [kafka-1:9092, kafka-2:9092]
  topic: parcel-events
seed_reference_data: true
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "/var/lib/parcelrate.db", cfg.DBPath)
	assert.Equal(t, "admin@example.com", cfg.AdminEmail)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "parcel-events", cfg.KafkaTopic)
	assert.False(t, cfg.IsDev())
	assert.True(t, cfg.SeedReferenceData)
}

func TestLoad_EnvBrokersAndSeedFlag(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("SEED_REFERENCE_DATA", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.False(t, cfg.SeedReferenceData)
}

func TestLoad_RejectsBadInput(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEED_REFERENCE_DATA", "maybe")
	_, err := Load()
	require.Error(t, err)

	clearEnv(t)
	t.Setenv("CONFIG_FILE", writeFile(t, "bad.yaml", "port: [unterminated"))
	_, err = Load()
	require.Error(t, err)
}
