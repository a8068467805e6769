package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "SHOPFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	API      APIConfig
	Storage  StorageConfig
	Square   SquareConfig
	Callback CallbackConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.API.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPFRONT_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"SHOPFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type APIConfig struct {
	BaseURL        string        `envconfig:"SHOPFRONT_API_BASE_URL" required:"true"`
	RequestTimeout time.Duration `envconfig:"SHOPFRONT_API_REQUEST_TIMEOUT" default:"30s"`
}

func (a APIConfig) validate() error {
	u, err := url.Parse(a.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SHOPFRONT_API_BASE_URL must be an absolute URL, got %q", a.BaseURL)
	}
	return nil
}

type StorageConfig struct {
	Path string `envconfig:"SHOPFRONT_STORAGE_PATH" default:"shopfront.db"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"SHOPFRONT_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"SHOPFRONT_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"SHOPFRONT_SQUARE_LOCATION_ID"`
	Currency    string `envconfig:"SHOPFRONT_SQUARE_CURRENCY" default:"USD"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type CallbackConfig struct {
	ListenAddr string        `envconfig:"SHOPFRONT_CALLBACK_LISTEN_ADDR" default:"127.0.0.1:8972"`
	WaitLimit  time.Duration `envconfig:"SHOPFRONT_CALLBACK_WAIT_LIMIT" default:"10m"`
}
