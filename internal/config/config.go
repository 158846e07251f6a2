package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App   AppConfig   `toml:"app"`
	Log   LogConfig   `toml:"log"`
	HTTP  HTTPConfig  `toml:"http"`
	Model ModelConfig `toml:"model"`
	Redis RedisConfig `toml:"redis"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type HTTPConfig struct {
	MaxBodyBytes             int64 `toml:"max_body_bytes"`
	ReadHeaderTimeoutSeconds int   `toml:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds   int   `toml:"shutdown_timeout_seconds"`
}

type ModelConfig struct {
	Path              string `toml:"path"`
	ONNXSharedLibPath string `toml:"onnx_shared_lib_path"`
	MaxImagePixels    int64  `toml:"max_image_pixels"`
}

// RedisConfig configures the optional probability cache. An empty Addr
// disables caching. Entries live only for CacheTTLSeconds; this is not a
// result store.
type RedisConfig struct {
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	CacheTTLSeconds int    `toml:"cache_ttl_seconds"`
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) CacheEnabled() bool {
	return c.Redis.Addr != ""
}

func (c *Config) validate() error {
	if c.Model.Path == "" {
		return fmt.Errorf("model path is empty")
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid app port %d", c.App.Port)
	}
	if c.Model.MaxImagePixels <= 0 {
		return fmt.Errorf("invalid model max image pixels %d", c.Model.MaxImagePixels)
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid http max body bytes %d", c.HTTP.MaxBodyBytes)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "retinascan",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    5000,
			GinMode: "release",
		},
		Log: LogConfig{
			Level: "info",
		},
		HTTP: HTTPConfig{
			MaxBodyBytes:             16 << 20,
			ReadHeaderTimeoutSeconds: 5,
			ShutdownTimeoutSeconds:   5,
		},
		Model: ModelConfig{
			Path:              "models/best_retina_model.onnx",
			ONNXSharedLibPath: "", // use default or set via ONNX_LIB
			MaxImagePixels:    89478485,
		},
		Redis: RedisConfig{
			Addr:            "",
			Password:        "",
			DB:              0,
			CacheTTLSeconds: 600,
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	cfg.HTTP.MaxBodyBytes = int64(getEnvAsInt("HTTP_MAX_BODY_BYTES", int(cfg.HTTP.MaxBodyBytes)))

	cfg.Model.Path = getEnv("MODEL_PATH", cfg.Model.Path)
	cfg.Model.ONNXSharedLibPath = getEnv("ONNX_LIB", cfg.Model.ONNXSharedLibPath)
	cfg.Model.MaxImagePixels = int64(getEnvAsInt("MODEL_MAX_IMAGE_PIXELS", int(cfg.Model.MaxImagePixels)))

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.CacheTTLSeconds = getEnvAsInt("CACHE_TTL_SECONDS", cfg.Redis.CacheTTLSeconds)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
