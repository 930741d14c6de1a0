package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Host        string `mapstructure:"HOST"`
	Port        string `mapstructure:"PORT"`
	GinMode     string `mapstructure:"GIN_MODE"`
	Environment string `mapstructure:"ENVIRONMENT"`

	// Database
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Redis (optional; empty disables the permission cache)
	RedisURL string `mapstructure:"REDIS_URL"`

	// Auth
	SecretKey            string `mapstructure:"SECRET_KEY"`
	AccessTokenExpireMin int    `mapstructure:"ACCESS_TOKEN_EXPIRE_MIN"`

	// File storage
	StoragePath   string `mapstructure:"STORAGE_PATH"`
	MaxUploadSize int64  `mapstructure:"MAX_UPLOAD_SIZE"`

	// Embedding service (OpenAI compatible)
	EmbeddingAPIKey     string `mapstructure:"EMBEDDING_API_KEY"`
	EmbeddingBaseURL    string `mapstructure:"EMBEDDING_BASE_URL"`
	EmbeddingModel      string `mapstructure:"EMBEDDING_MODEL"`
	EmbeddingDimensions int    `mapstructure:"EMBEDDING_DIMENSIONS"`

	// Ingestion
	WorkerPoolSize       int `mapstructure:"WORKER_POOL_SIZE"`
	ProcessingTimeoutSec int `mapstructure:"PROCESSING_TIMEOUT_SEC"`
	LeaseTTLSec          int `mapstructure:"LEASE_TTL_SEC"`
	HeartbeatSec         int `mapstructure:"HEARTBEAT_SEC"`
	SweepIntervalSec     int `mapstructure:"SWEEP_INTERVAL_SEC"`
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.SetDefault("HOST", "0.0.0.0")
	viper.SetDefault("PORT", "8090")
	viper.SetDefault("GIN_MODE", "debug")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DATABASE_URL", "postgres://localhost:5432/mindvault?sslmode=disable")
	viper.SetDefault("SECRET_KEY", "dev-secret-change-me")
	viper.SetDefault("ACCESS_TOKEN_EXPIRE_MIN", 120)
	viper.SetDefault("STORAGE_PATH", "./storage")
	viper.SetDefault("MAX_UPLOAD_SIZE", 50*1024*1024)
	viper.SetDefault("EMBEDDING_BASE_URL", "https://api.openai.com/v1")
	viper.SetDefault("EMBEDDING_MODEL", "text-embedding-3-small")
	viper.SetDefault("EMBEDDING_DIMENSIONS", 1536)
	viper.SetDefault("WORKER_POOL_SIZE", 4)
	viper.SetDefault("PROCESSING_TIMEOUT_SEC", 300)
	viper.SetDefault("LEASE_TTL_SEC", 60)
	viper.SetDefault("HEARTBEAT_SEC", 20)
	viper.SetDefault("SWEEP_INTERVAL_SEC", 30)

	// Try to read .env file (optional)
	_ = viper.ReadInConfig()

	for _, key := range []string{
		"HOST", "PORT", "GIN_MODE", "ENVIRONMENT", "DATABASE_URL", "REDIS_URL",
		"SECRET_KEY", "ACCESS_TOKEN_EXPIRE_MIN", "STORAGE_PATH", "MAX_UPLOAD_SIZE",
		"EMBEDDING_API_KEY", "EMBEDDING_BASE_URL", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS",
		"WORKER_POOL_SIZE", "PROCESSING_TIMEOUT_SEC", "LEASE_TTL_SEC", "HEARTBEAT_SEC",
		"SWEEP_INTERVAL_SEC",
	} {
		if val := os.Getenv(key); val != "" {
			viper.Set(key, val)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Environment) == "development"
}

func (c *Config) ProcessingTimeout() time.Duration {
	return time.Duration(c.ProcessingTimeoutSec) * time.Second
}

func (c *Config) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseTTLSec) * time.Second
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatSec) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}
