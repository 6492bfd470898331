package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr           string
	LogLevel       string
	AllowedOrigins []string
}

const (
	defaultAddr     = ":8080"
	defaultLogLevel = "info"
)

// Load reads an optional .env file (files) and then the environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Addr:     getenv("LOTTERY_ADDR"),
		LogLevel: strings.ToLower(getenv("LOTTERY_LOG_LEVEL")),
	}
	if cfg.Addr == "" {
		if port := getenv("PORT"); port != "" {
			cfg.Addr = ":" + port
		} else {
			cfg.Addr = defaultAddr
		}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("invalid LOTTERY_LOG_LEVEL %q", cfg.LogLevel)
	}

	for _, o := range strings.Split(getenv("LOTTERY_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}
	return cfg, nil
}
