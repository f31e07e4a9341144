package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        int `yaml:"port"`
		MetricsPort int `yaml:"metrics_port"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Analysis struct {
		BaseURL           string        `yaml:"base_url"`
		Timeout           time.Duration `yaml:"timeout"`
		HistoryCapacity   int           `yaml:"history_capacity"`
		AcceptLegacyShape bool          `yaml:"accept_legacy_shape"`
	} `yaml:"analysis"`

	Console struct {
		AllowedOrigins []string          `yaml:"allowed_origins"`
		APIKeys        map[string]string `yaml:"api_keys"`
		MaxSessions    int               `yaml:"max_sessions"`
		SessionIdle    time.Duration     `yaml:"session_idle"`
		RateLimit      struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"console"`

	Ledger struct {
		Driver   string `yaml:"driver"`
		Path     string `yaml:"path"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"ledger"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Scenarios struct {
		Interval  time.Duration `yaml:"interval"`
		ReportDir string        `yaml:"report_dir"`
	} `yaml:"scenarios"`
}

// Ledger drivers
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Server.MetricsPort = 9090
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Analysis.BaseURL = "http://localhost:5000"
	cfg.Analysis.Timeout = 60 * time.Second
	cfg.Analysis.HistoryCapacity = 10
	cfg.Console.AllowedOrigins = []string{"http://localhost:5173"}
	cfg.Console.MaxSessions = 1000
	cfg.Console.SessionIdle = 30 * time.Minute
	cfg.Console.RateLimit.RPS = 5
	cfg.Console.RateLimit.Burst = 10
	cfg.Ledger.Driver = DriverNone
	cfg.Ledger.Path = "sentinel.db"
	cfg.Scenarios.Interval = 500 * time.Millisecond
	cfg.Scenarios.ReportDir = "test_results"
	return &cfg
}

// Load baca file config.yaml di atas default, lalu env override
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		cfg.applyEnv()
		return cfg, cfg.Validate()
	}
	return cfg, err
}

// Path returns CONFIG_PATH or config.yaml.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "config.yaml"
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SENTINEL_ANALYSIS_URL"); v != "" {
		c.Analysis.BaseURL = v
	}
	if v := os.Getenv("SENTINEL_LEDGER_DRIVER"); v != "" {
		c.Ledger.Driver = v
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Analysis.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("analysis.base_url must be an absolute http(s) URL, got %q", c.Analysis.BaseURL)
	}
	if c.Analysis.Timeout < 0 {
		return fmt.Errorf("analysis.timeout must not be negative")
	}
	if c.Analysis.HistoryCapacity < 1 {
		return fmt.Errorf("analysis.history_capacity must be at least 1")
	}
	if c.Console.MaxSessions < 0 || c.Console.SessionIdle < 0 {
		return fmt.Errorf("console.max_sessions and console.session_idle must not be negative")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch strings.ToLower(c.Ledger.Driver) {
	case "", DriverNone, DriverSQLite, DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("ledger.driver %q not supported (none, sqlite, mysql, postgres)", c.Ledger.Driver)
	}
	return nil
}

// LedgerDriver returns the normalized driver name.
func (c *Config) LedgerDriver() string {
	d := strings.ToLower(strings.TrimSpace(c.Ledger.Driver))
	if d == "" {
		return DriverNone
	}
	return d
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Ledger.User,
		c.Ledger.Password,
		c.Ledger.Host,
		c.Ledger.Port,
		c.Ledger.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Ledger.Host,
		c.Ledger.Port,
		c.Ledger.User,
		c.Ledger.Password,
		c.Ledger.Name,
	)
}

// MinioEnabled reports whether report uploads are configured.
func (c *Config) MinioEnabled() bool {
	return c.Minio.Endpoint != "" && c.Minio.BucketName != ""
}
