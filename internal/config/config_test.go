package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Source.Pages != 6 {
		t.Errorf("expected 6 pages, got %d", cfg.Source.Pages)
	}
	if !cfg.Source.Headless {
		t.Error("expected headless to default to true")
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("expected driver 'sqlite', got %q", cfg.Storage.Driver)
	}
	if cfg.Storage.BatchSize != 50 {
		t.Errorf("expected batch size 50, got %d", cfg.Storage.BatchSize)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
source:
  pages: 2
storage:
  batch_size: 10
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Source.Pages != 2 {
		t.Errorf("expected 2 pages, got %d", cfg.Source.Pages)
	}
	if cfg.Storage.BatchSize != 10 {
		t.Errorf("expected batch size 10, got %d", cfg.Storage.BatchSize)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Source.BaseURL != "https://habr.com/ru/articles/" {
		t.Errorf("expected default base_url, got %q", cfg.Source.BaseURL)
	}
	if cfg.Source.Delay() != time.Second {
		t.Errorf("expected 1s delay, got %v", cfg.Source.Delay())
	}
	if cfg.Source.PageTimeout() != 10*time.Second {
		t.Errorf("expected 10s page timeout, got %v", cfg.Source.PageTimeout())
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"zero pages":        "source:\n  pages: 0\n",
		"zero batch":        "storage:\n  batch_size: 0\n",
		"negative delay":    "source:\n  delay_seconds: -1\n",
		"unknown driver":    "storage:\n  driver: mysql\n",
		"postgres sans dsn": "storage:\n  driver: postgres\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parse([]byte(data)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Source.Pages == 0 {
		t.Error("expected pages to be populated from file")
	}
}

func TestResolveConfigPathExplicitMissing(t *testing.T) {
	_, err := ResolveConfigPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
	if cfg.RawPath() != filepath.Join("/custom/path", RawFile) {
		t.Errorf("unexpected raw path %q", cfg.RawPath())
	}
}

func TestSQLitePath(t *testing.T) {
	cfg := Default()
	cfg.Output.DataDir = "/data"
	if got := cfg.SQLitePath(); got != filepath.Join("/data", DBFile) {
		t.Errorf("expected default db path, got %q", got)
	}

	cfg.Storage.DSN = "/elsewhere/articles.db"
	if got := cfg.SQLitePath(); got != "/elsewhere/articles.db" {
		t.Errorf("expected dsn path, got %q", got)
	}
}
