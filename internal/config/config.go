package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	URL     string        `yaml:"url"`     // Ledger backend base URL
	Timeout time.Duration `yaml:"timeout"` // Per-request timeout; mining blocks until the backend answers
}

type WalletConfig struct {
	Username string `yaml:"username"` // Placeholder identity for a fresh session
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Bind    string `yaml:"bind"`
}

type MiningConfig struct {
	AutoInterval time.Duration `yaml:"auto_interval"` // 0 disables the auto-mine loop
}

type DBConfig struct {
	Driver string `yaml:"driver"` // "sqlite3" (cgo) or "sqlite" (pure Go)
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	DataDir string       `yaml:"data_dir"`
	Server  ServerConfig `yaml:"server"`
	Wallet  WalletConfig `yaml:"wallet"`
	API     APIConfig    `yaml:"api"`
	Mining  MiningConfig `yaml:"mining"`
	DB      DBConfig     `yaml:"db"`
	Log     LogConfig    `yaml:"log"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir: filepath.Join(home, ".clawwallet"),
		Server: ServerConfig{
			URL:     "http://localhost:5000",
			Timeout: 2 * time.Minute,
		},
		Wallet: WalletConfig{
			Username: "melqui",
		},
		API: APIConfig{
			Enabled: true,
			Port:    8405,
			Bind:    "127.0.0.1",
		},
		DB: DBConfig{
			Driver: "sqlite3",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.clawwallet/clawwallet.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".clawwallet", "clawwallet.yaml")
}

// Load reads a YAML config file and merges it with defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, cfg.Validate()
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Expand ~ in data_dir
	if len(cfg.DataDir) > 0 && cfg.DataDir[0] == '~' {
		home, _ := os.UserHomeDir()
		cfg.DataDir = filepath.Join(home, cfg.DataDir[1:])
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// LoadFromBytes parses YAML config from bytes and merges with defaults.
// Used by the mobile package where there's no config file on disk.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// applyEnv overlays environment variables on top of config values.
func (c *Config) applyEnv() {
	if v := os.Getenv("CLAWWALLET_SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("CLAWWALLET_USERNAME"); v != "" {
		c.Wallet.Username = v
	}
	if v := os.Getenv("CLAWWALLET_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("CLAWWALLET_DB_DRIVER"); v != "" {
		c.DB.Driver = v
	}
	if v := os.Getenv("CLAWWALLET_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.URL) == "" {
		return fmt.Errorf("server.url is required")
	}
	if strings.TrimSpace(c.Wallet.Username) == "" {
		return fmt.Errorf("wallet.username is required")
	}
	if c.Server.Timeout < 0 {
		return fmt.Errorf("server.timeout must not be negative")
	}
	if c.Mining.AutoInterval < 0 {
		return fmt.Errorf("mining.auto_interval must not be negative")
	}
	switch c.DB.Driver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("db.driver %q: want sqlite3 or sqlite", c.DB.Driver)
	}
	return nil
}

// DBPath returns the full path to the SQLite journal file.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "clawwallet.db")
}
