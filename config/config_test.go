package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
		"MQ_URL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"JWT_SECRET", "JWT_TTL", "SERVER_PORT", "METRICS_PORT",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_ENABLED", "OTEL_TRACES_SAMPLER_ARG", "CONFIG_ENV",
	} {
		t.Setenv(key, "")
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]byte(`
db:
  host: db
  name: skillfund
jwt:
  secret: s3cret
`))
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "disable", cfg.DB.SSLMode)
	assert.Equal(t, int32(10), cfg.DB.MaxConns)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Outbox.Interval)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, 5, cfg.Outbox.MaxRetries)
}

func TestParseEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_HOST", "postgres")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("MQ_URL", "amqp://mq")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.5")

	cfg, err := Parse([]byte(`
db:
  host: localhost
  port: 5432
  name: skillfund
redis:
  addr: localhost:6379
  cache_ttl: 45s
jwt:
  secret: from-file
`))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DB.Host)
	assert.Equal(t, 6543, cfg.DB.Port)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 45*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, "amqp://mq", cfg.MQ.URL)
	assert.Equal(t, 0.5, cfg.OTel.SampleRatio)
}

func TestParseValidation(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"missing secret", "db: {host: db, name: sf}", "jwt.secret"},
		{"missing db", "jwt: {secret: x}", "db.host"},
		{"negative outbox", "db: {host: db, name: sf}\njwt: {secret: x}\noutbox: {batch_size: -1}", "outbox"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadLayered(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_ENV", "test")

	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	write("base.yaml", "db:\n  host: localhost\n  name: skillfund\njwt:\n  secret: ${JWT_SECRET}\n")
	write("test.yaml", "db:\n  host: test-db\n")
	write("secrets.env", "JWT_SECRET=layered\n")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "test-db", cfg.DB.Host)
	assert.Equal(t, "skillfund", cfg.DB.Name)
	assert.Equal(t, "layered", cfg.JWT.Secret)
}

func TestLoadLayeredPlaceholders(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"),
		[]byte("db:\n  host: localhost\n  name: skillfund\n  password: ${DB_PASSWORD}\njwt:\n  secret: ${JWT_SECRET}\n"), 0o600))

	t.Run("process environment", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "from-process")
		t.Setenv("DB_PASSWORD", "pa$$word")

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "from-process", cfg.JWT.Secret)
		assert.Equal(t, "pa$$word", cfg.DB.Password)
	})

	t.Run("unresolved secret fails validation", func(t *testing.T) {
		_, err := Load(dir)
		assert.ErrorContains(t, err, "jwt.secret")
	})
}
