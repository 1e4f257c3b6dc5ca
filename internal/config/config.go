package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/speedwagon-io/vitals/internal/model"
)

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"prod"`
	Store    StoreConfig    `yaml:"store"`
	HTTP     HTTPConfig     `yaml:"http"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Healthd  HealthdConfig  `yaml:"healthd"`
	Emulator EmulatorConfig `yaml:"emulator"`
	Sender   SenderConfig   `yaml:"sender"`
	Log      LogConfig      `yaml:"log"`
}

const (
	DriverSQLite = "sqlite"
	DriverHTTP   = "http"
	DriverMemory = "memory"
)

type StoreConfig struct {
	Driver       string        `yaml:"driver" env:"STORE_DRIVER" env-default:"sqlite"`
	Path         string        `yaml:"path" env:"STORE_PATH" env-default:"/var/lib/vitals/health.db"`
	BaseURL      string        `yaml:"base_url" env:"STORE_URL" env-default:"http://localhost:8090"`
	Timeout      time.Duration `yaml:"timeout" env-default:"10s"`
	PollInterval time.Duration `yaml:"poll_interval" env-default:"2s"`
	Retry        RetryConfig   `yaml:"retry"`
	// Denied metrics fail authorization on the sqlite store.
	Denied []string `yaml:"denied"`
}

type HTTPConfig struct {
	Address string `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	Refresh int    `yaml:"refresh" env-default:"2"`
}

type MonitorConfig struct {
	Watch     []string `yaml:"watch"`
	Authorize []string `yaml:"authorize"`
}

type HealthdConfig struct {
	Address string `yaml:"address" env:"HEALTHD_ADDRESS" env-default:":8090"`
}

type EmulatorConfig struct {
	Interval time.Duration `yaml:"interval" env-default:"5s"`
	Source   string        `yaml:"source" env-default:"emulator"`
	Seed     int64         `yaml:"seed"`
}

type SenderConfig struct {
	URL     string        `yaml:"url" env:"SENDER_URL" env-default:"http://localhost:8090"`
	Timeout time.Duration `yaml:"timeout" env-default:"30s"`
	Retry   RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" env-default:"5"`
	InitialDelay time.Duration `yaml:"initial_delay" env-default:"1s"`
	MaxDelay     time.Duration `yaml:"max_delay" env-default:"60s"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env-default:"json"`
}

func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// Load reads configPath, falling back to CONFIG_PATH and then
// config/config.yaml. Without any file it reads the environment only.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	if configPath == "" {
		configPath = "config/config.yaml"
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = ""
		}
	}

	var cfg Config
	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read env: %w", err)
		}
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverHTTP, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	for _, list := range [][]string{c.Store.Denied, c.Monitor.Watch, c.Monitor.Authorize} {
		if _, err := ParseMetrics(list); err != nil {
			return err
		}
	}
	return nil
}

func ParseMetrics(names []string) ([]model.MetricType, error) {
	out := make([]model.MetricType, 0, len(names))
	for _, name := range names {
		t, err := model.ParseMetricType(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// MustMetrics is ParseMetrics for lists already checked by Load.
func MustMetrics(names []string) []model.MetricType {
	out, err := ParseMetrics(names)
	if err != nil {
		panic(err.Error())
	}
	return out
}
