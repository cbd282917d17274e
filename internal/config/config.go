package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Artifact and database file names inside the data directory.
const (
	RawFile       = "raw_articles.json"
	CleanJSONFile = "cleaned_articles.json"
	CleanCSVFile  = "cleaned_articles.csv"
	DBFile        = "habr_articles.db"
)

type Config struct {
	Source  Source  `yaml:"source"`
	Output  Output  `yaml:"output"`
	Storage Storage `yaml:"storage"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

type Source struct {
	BaseURL            string `yaml:"base_url"`
	Pages              int    `yaml:"pages"`
	DelaySeconds       int    `yaml:"delay_seconds"`
	PageTimeoutSeconds int    `yaml:"page_timeout_seconds"`
	Headless           bool   `yaml:"headless"`
	UserAgent          string `yaml:"user_agent"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Storage struct {
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	BatchSize int    `yaml:"batch_size"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for habrpipe.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "habrpipe")
}

// DataDir returns the XDG data directory for habrpipe.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "habrpipe")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/habrpipe/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'habrpipe init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Source: Source{
			BaseURL:            "https://habr.com/ru/articles/",
			Pages:              6,
			DelaySeconds:       1,
			PageTimeoutSeconds: 10,
			Headless:           true,
			UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		},
		Storage: Storage{
			Driver:    DriverSQLite,
			BatchSize: 50,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first setting no stage can run with.
func (c *Config) Validate() error {
	switch {
	case c.Source.BaseURL == "":
		return fmt.Errorf("source.base_url is required")
	case c.Source.Pages < 1:
		return fmt.Errorf("source.pages must be at least 1, got %d", c.Source.Pages)
	case c.Source.DelaySeconds < 0:
		return fmt.Errorf("source.delay_seconds must not be negative")
	case c.Source.PageTimeoutSeconds < 0:
		return fmt.Errorf("source.page_timeout_seconds must not be negative")
	case c.Storage.BatchSize < 1:
		return fmt.Errorf("storage.batch_size must be at least 1, got %d", c.Storage.BatchSize)
	}

	switch c.Storage.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func (c *Config) RawPath() string       { return filepath.Join(c.GetDataDir(), RawFile) }
func (c *Config) CleanJSONPath() string { return filepath.Join(c.GetDataDir(), CleanJSONFile) }
func (c *Config) CleanCSVPath() string  { return filepath.Join(c.GetDataDir(), CleanCSVFile) }

// SQLitePath returns the database file, honoring storage.dsn when set.
func (c *Config) SQLitePath() string {
	if c.Storage.Driver == DriverSQLite && c.Storage.DSN != "" {
		return c.Storage.DSN
	}
	return filepath.Join(c.GetDataDir(), DBFile)
}

// Delay is the pause between two page fetches.
func (s Source) Delay() time.Duration {
	return time.Duration(s.DelaySeconds) * time.Second
}

// PageTimeout bounds a single page fetch.
func (s Source) PageTimeout() time.Duration {
	return time.Duration(s.PageTimeoutSeconds) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
