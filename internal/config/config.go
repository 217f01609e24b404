package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the monitoring service.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Store    StoreConfig    `yaml:"store"`
	Detector DetectorConfig `yaml:"detector"`
	Risk     RiskConfig     `yaml:"risk"`
	Auth     AuthConfig     `yaml:"auth"`
	Cache    CacheConfig    `yaml:"cache"`
}

// AppConfig identifies the running instance in health responses.
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig controls the HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// StoreConfig bounds the in-memory time series.
type StoreConfig struct {
	MaxEntries int `yaml:"maxEntries"`
}

// DetectorConfig holds anomaly detection defaults applied when a request does
// not override them.
type DetectorConfig struct {
	WindowSize int     `yaml:"windowSize"`
	ZThreshold float64 `yaml:"zThreshold"`
}

// RiskConfig holds SLA risk scoring defaults.
type RiskConfig struct {
	LookbackMinutes int     `yaml:"lookbackMinutes"`
	CPUThreshold    float64 `yaml:"cpuThreshold"`
	MemoryThreshold float64 `yaml:"memoryThreshold"`
	GPUThreshold    float64 `yaml:"gpuThreshold"`
	AnomalyWeight   float64 `yaml:"anomalyWeight"`
	BreachWeight    float64 `yaml:"breachWeight"`
	ProfilesPath    string  `yaml:"profilesPath"`
}

// AuthConfig controls the optional bearer-token guard on the API.
type AuthConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"tokenTTL"`
	Users    []UserConfig  `yaml:"users"`
}

// UserConfig seeds the in-memory user registry at startup.
type UserConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	FullName string `yaml:"fullName"`
}

// CacheConfig controls short-TTL caching of risk assessments.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	AssessmentTTL time.Duration `yaml:"assessmentTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("INFRA_MIND_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		App: AppConfig{
			Name:        "infra-mind",
			Version:     "1.0.0",
			Environment: "development",
		},
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    15 * time.Second,
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Store:   StoreConfig{MaxEntries: 10000},
		Detector: DetectorConfig{
			WindowSize: 10,
			ZThreshold: 3.0,
		},
		Risk: RiskConfig{
			LookbackMinutes: 10,
			CPUThreshold:    80,
			MemoryThreshold: 85,
			GPUThreshold:    90,
			AnomalyWeight:   0.4,
			BreachWeight:    0.6,
		},
		Auth: AuthConfig{
			Enabled:  false,
			TokenTTL: 30 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled:       false,
			AssessmentTTL: 10 * time.Second,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INFRA_MIND_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("INFRA_MIND_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("INFRA_MIND_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("INFRA_MIND_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("INFRA_MIND_ENVIRONMENT"); v != "" {
		cfg.App.Environment = v
	}
	if v := os.Getenv("INFRA_MIND_STORE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.MaxEntries = n
		}
	}
	if v := os.Getenv("INFRA_MIND_RISK_PROFILES_PATH"); v != "" {
		cfg.Risk.ProfilesPath = v
	}
	if v := os.Getenv("INFRA_MIND_AUTH_ENABLED"); v != "" {
		cfg.Auth.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("INFRA_MIND_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("INFRA_MIND_AUTH_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = d
		}
	}
	if v := os.Getenv("INFRA_MIND_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("INFRA_MIND_CACHE_ASSESSMENT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.AssessmentTTL = d
		}
	}
}
