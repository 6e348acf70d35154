package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr              string        `mapstructure:"addr"`
	DatabaseURL       string        `mapstructure:"database_url"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	BcryptCost        int           `mapstructure:"bcrypt_cost"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"`
	MigrateOnStart    bool          `mapstructure:"migrate_on_start"`
	AuthRatePerMinute int           `mapstructure:"auth_rate_per_minute"`
	AuthBurst         int           `mapstructure:"auth_burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("database_url", "postgres://postgres:postgres@db:5432/taskboard?sslmode=disable")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", 7*24*time.Hour)
	v.SetDefault("bcrypt_cost", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("migrate_on_start", true)
	v.SetDefault("auth_rate_per_minute", 30)
	v.SetDefault("auth_burst", 10)
}

// loadConfig reads defaults, then the optional file, then TASKBOARD_* env vars.
func loadConfig(v *viper.Viper, file string) (Config, error) {
	setDefaults(v)
	v.SetEnvPrefix("TASKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// validateServe checks what serving needs beyond what migrations need.
func (c Config) validateServe() error {
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required (TASKBOARD_JWT_SECRET)")
	}
	if c.TokenTTL <= 0 {
		return errors.New("token_ttl must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("bcrypt_cost %d out of range", c.BcryptCost)
	}
	return nil
}

func newLogger(cfg Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.ToLower(cfg.LogFormat) == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(h)
}
