// Package config loads the bridge host settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"dappbridge/internal/constants"
)

type Config struct {
	Host      string `env:"DAPPBRIDGE_HOST" envDefault:"localhost"`
	Port      string `env:"PORT" envDefault:"8080"`
	EnableTLS bool   `env:"DAPPBRIDGE_ENABLE_TLS" envDefault:"false"`
	CertFile  string `env:"DAPPBRIDGE_CERT_FILE" envDefault:"certs/server.crt"`
	KeyFile   string `env:"DAPPBRIDGE_KEY_FILE" envDefault:"certs/server.key"`

	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     string `env:"REDIS_PORT" envDefault:"6379"`
	RedisUser     string `env:"REDIS_USERNAME"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	SessionDuration time.Duration `env:"DAPPBRIDGE_SESSION_DURATION" envDefault:"1h"`
	LogDir          string        `env:"DAPPBRIDGE_LOG_DIR"`
	OpenExternal    bool          `env:"DAPPBRIDGE_OPEN_EXTERNAL" envDefault:"true"`
	AllowedOrigins  []string      `env:"DAPPBRIDGE_ALLOWED_ORIGINS" envSeparator:","`
	TrustedProxies  []string      `env:"DAPPBRIDGE_TRUSTED_PROXIES" envSeparator:","`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.SessionDuration < constants.MinSessionDuration {
		cfg.SessionDuration = constants.MinSessionDuration
	}
	if cfg.SessionDuration > constants.MaxSessionDuration {
		cfg.SessionDuration = constants.MaxSessionDuration
	}

	if cfg.LogDir == "" {
		dir, err := defaultLogDir()
		if err != nil {
			return Config{}, fmt.Errorf("failed to get log directory: %w", err)
		}
		cfg.LogDir = dir
	}
	return cfg, nil
}

func defaultLogDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(homeDir, "AppData", "Local", constants.AppName, "logs"), nil
	case "darwin":
		return filepath.Join(homeDir, "Library", "Logs", constants.AppName), nil
	default:
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, constants.AppName, "logs"), nil
		}
		return filepath.Join(homeDir, ".local", "share", constants.AppName, "logs"), nil
	}
}
