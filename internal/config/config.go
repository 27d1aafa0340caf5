package config

import (
	"errors"
	"strings"

	"github.com/andrew-solarstorm/go-packages/common"
	"github.com/rs/zerolog"
)

type ServerEnv = string

var (
	DevEnv     ServerEnv = "dev"
	StagingEnv ServerEnv = "staging"
	ProdEnv    ServerEnv = "prod"
)

const (
	GENERAL_CONFIG_KEY = "general-config"
	QUOTER_CONFIG_KEY  = "quoter-config"
	STORAGE_CONFIG_KEY = "storage-config"
)

type GeneralConfig struct {
	HTTPPort string
	HTTPHost string
	Env      string
	LogLevel string
	// RateLimitPerSecond is the per-IP request budget of the public API. 0 disables the limiter.
	RateLimitPerSecond int
	// AdminToken guards the admin API (X-Admin-Token header). Empty disables the admin API.
	AdminToken string
}

func (gc *GeneralConfig) Key() string {
	return GENERAL_CONFIG_KEY
}

func (gc *GeneralConfig) Load() error {
	gc.HTTPPort = common.GetEnvOrDefault("HTTP_PORT", "8080")
	gc.HTTPHost = common.GetEnvOrDefault("HTTP_HOST", "localhost")
	gc.Env = common.GetEnvOrDefault("ENV", "dev")
	gc.LogLevel = common.GetEnvOrDefault("LOG_LEVEL", "INFO")
	gc.RateLimitPerSecond = common.GetEnvOrDefaultInt("HTTP_RATE_LIMIT", 100)
	gc.AdminToken = common.GetEnvOrDefault("ADMIN_TOKEN", "")
	if err := gc.Validate(); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(strings.ToLower(gc.LogLevel))
	if err != nil {
		return errors.New("invalid server config: unknown log level " + gc.LogLevel)
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

func (gc *GeneralConfig) Validate() error {
	if gc.HTTPPort == "" || gc.HTTPHost == "" || gc.Env == "" {
		return errors.New("invalid server config")
	}
	if gc.RateLimitPerSecond < 0 {
		return errors.New("invalid server config: negative rate limit")
	}
	return nil
}
