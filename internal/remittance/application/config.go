package application

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	remittance "pix-remittance/internal/remittance/domain"
)

// Counter backends.
const (
	CounterFile     = "file"
	CounterPostgres = "postgres"
	CounterMemory   = "memory"
)

// Config defines the remittance configuration: the originator profile plus
// where the sequence and the archived files live.
type Config struct {
	Originator    remittance.OriginatorProfile `yaml:"originator"`
	Counter       string                       `yaml:"counter"`
	CounterPath   string                       `yaml:"counter_path"`
	ArchiveRoot   string                       `yaml:"archive_root"`
	Timezone      string                       `yaml:"timezone"`
	WebhookURL    string                       `yaml:"webhook_url"`
	PublicBaseURL string                       `yaml:"public_base_url"`
}

// LoadConfig loads config from the file named by REMITTANCE_CONFIG and env.
func LoadConfig() (Config, error) {
	return LoadConfigFile(os.Getenv("REMITTANCE_CONFIG"))
}

// LoadConfigFile loads config from path (optional) and fills the gaps from env.
func LoadConfigFile(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("remittance config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("remittance config: %w", err)
		}
	}

	if cfg.Counter == "" {
		cfg.Counter = getenvDefault("REMITTANCE_COUNTER", CounterFile)
	}
	if cfg.CounterPath == "" {
		cfg.CounterPath = getenvDefault("REMITTANCE_COUNTER_PATH", filepath.FromSlash("var/remittance/nsa"))
	}
	if cfg.ArchiveRoot == "" {
		cfg.ArchiveRoot = getenvDefault("REMITTANCE_ARCHIVE_ROOT", filepath.FromSlash("var/remittance/archive"))
	}
	if cfg.Timezone == "" {
		cfg.Timezone = getenvDefault("REMITTANCE_TIMEZONE", "America/Sao_Paulo")
	}
	if cfg.WebhookURL == "" {
		cfg.WebhookURL = os.Getenv("REMITTANCE_WEBHOOK_URL")
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = getenvDefault("REMITTANCE_PUBLIC_BASE_URL", "http://localhost:8080")
	}
	cfg.Counter = strings.ToLower(strings.TrimSpace(cfg.Counter))

	switch cfg.Counter {
	case CounterFile, CounterPostgres, CounterMemory:
	default:
		return cfg, fmt.Errorf("remittance config: unknown counter %q", cfg.Counter)
	}
	if cfg.Counter == CounterFile && cfg.CounterPath == "" {
		return cfg, fmt.Errorf("remittance config: counter path required")
	}
	return cfg, nil
}

// Location resolves the configured time zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("remittance config: timezone: %w", err)
	}
	return loc, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
