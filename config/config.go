package config

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	pkgconfig "skillfund/pkg/config"
)

type Config struct {
	DB     pkgconfig.DBConfig     `yaml:"db"`
	Redis  pkgconfig.RedisConfig  `yaml:"redis"`
	MQ     pkgconfig.MQConfig     `yaml:"mq"`
	JWT    pkgconfig.JWTConfig    `yaml:"jwt"`
	Server pkgconfig.ServerConfig `yaml:"server"`
	OTel   pkgconfig.OTelConfig   `yaml:"otel"`
	Outbox OutboxConfig           `yaml:"outbox"`
}

type OutboxConfig struct {
	Interval   time.Duration `yaml:"interval"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
}

// Load reads <dir>/base.yaml, overlays <dir>/<CONFIG_ENV>.yaml and applies
// environment overrides (生产环境使用).
func Load(dir string) (*Config, error) {
	raw, err := pkgconfig.LoadLayered(dir, pkgconfig.GetConfigEnv())
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes a YAML document, fills defaults and applies env overrides.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	pkgconfig.OverrideDBFromEnv(&cfg.DB)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideJWTFromEnv(&cfg.JWT)
	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	pkgconfig.OverrideOTelFromEnv(&cfg.OTel)

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}
	if c.DB.SSLMode == "" {
		c.DB.SSLMode = "disable"
	}
	if c.DB.MaxConns == 0 {
		c.DB.MaxConns = 10
	}
	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = 30 * time.Second
	}
	if c.JWT.TTL == 0 {
		c.JWT.TTL = 24 * time.Hour
	}
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Outbox.Interval == 0 {
		c.Outbox.Interval = time.Second
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 100
	}
	if c.Outbox.MaxRetries == 0 {
		c.Outbox.MaxRetries = 5
	}
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret must be set")
	}
	if c.DB.Host == "" || c.DB.Name == "" {
		return errors.New("db.host and db.name must be set")
	}
	if c.Outbox.BatchSize < 0 || c.Outbox.MaxRetries < 0 {
		return errors.New("outbox settings must not be negative")
	}
	return nil
}
