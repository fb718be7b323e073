package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port    string `yaml:"port"`
	DBPath  string `yaml:"db_path"`
	SeedDir string `yaml:"seed_dir"`

	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Disputes DisputesConfig `yaml:"disputes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
}

// RedisConfig enables the stats cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	StatsTTL time.Duration `yaml:"stats_ttl"`
}

type DisputesConfig struct {
	TopUrgentLimit int `yaml:"top_urgent_limit"`
}

func Default() Config {
	return Config{
		Port:    "8080",
		DBPath:  "adminpanel.db",
		SeedDir: "testdata",
		Log:     LogConfig{Level: "info", Format: "text"},
		Redis:   RedisConfig{StatsTTL: 30 * time.Second},
		Disputes: DisputesConfig{
			TopUrgentLimit: 2,
		},
	}
}

// Load layers defaults, an optional YAML file and environment variables,
// in that order. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.SeedDir = getEnv("SEED_DIR", cfg.SeedDir)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.StatsTTL = getEnvAsDuration("STATS_CACHE_TTL", cfg.Redis.StatsTTL)
	cfg.Disputes.TopUrgentLimit = getEnvAsInt("TOP_URGENT_LIMIT", cfg.Disputes.TopUrgentLimit)

	if cfg.Disputes.TopUrgentLimit <= 0 {
		cfg.Disputes.TopUrgentLimit = 2
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
