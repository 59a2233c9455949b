package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config is the top-level application configuration.
type Config struct {
	// Engine configuration
	Engine EngineConfig `json:"engine"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// App configuration
	App AppConfig `json:"app"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Cache configuration
	Cache CacheConfig `json:"cache"`
}

// EngineConfig configures the UCI engine and default search limits.
type EngineConfig struct {
	BinaryPath  string `json:"binaryPath"`
	WorkingDir  string `json:"workingDir"`
	Depth       int    `json:"depth"`
	MoveTimeMS  int    `json:"moveTimeMS"`
	MultiPV     int    `json:"multiPV"`
	HashMB      int    `json:"hashMB"`
	Threads     int    `json:"threads"`
	AutoRestart bool   `json:"autoRestart"`

	// Protocol timeouts, seconds.
	HandshakeTimeoutSecs int `json:"handshakeTimeoutSecs"`
	StopTimeoutSecs      int `json:"stopTimeoutSecs"`
}

// DatabaseConfig configures the SQLite game store.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Theme   string `json:"theme"`

	// DebugAddr enables the /healthz and /metrics listener when non-empty.
	DebugAddr string `json:"debugAddr"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Prefix string `json:"prefix"`
}

// CacheConfig configures the analysis snapshot cache.
type CacheConfig struct {
	Enabled  bool `json:"enabled"`
	MaxItems int  `json:"maxItems"`
}

// Load reads configuration from an optional JSON file, applies environment
// overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Engine: EngineConfig{
			BinaryPath:           "stockfish",
			Depth:                20,
			MultiPV:              3,
			HashMB:               256,
			Threads:              2,
			HandshakeTimeoutSecs: 10,
			StopTimeoutSecs:      5,
		},
		App: AppConfig{
			Name:    "chesslens",
			Version: "0.1.0",
			Theme:   "dark",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Prefix: "[chesslens] ",
		},
		Cache: CacheConfig{
			Enabled:  true,
			MaxItems: 512,
		},
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CHESSLENS_ENGINE_PATH"); v != "" {
		c.Engine.BinaryPath = v
	}
	if v := os.Getenv("CHESSLENS_ENGINE_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.Depth = n
		}
	}
	if v := os.Getenv("CHESSLENS_ENGINE_MULTIPV"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.MultiPV = n
		}
	}
	if v := os.Getenv("CHESSLENS_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("CHESSLENS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CHESSLENS_THEME"); v != "" {
		c.App.Theme = strings.ToLower(v)
	}
	if v := os.Getenv("CHESSLENS_DEBUG_ADDR"); v != "" {
		c.App.DebugAddr = v
	}
}

func (c *Config) validate() error {
	// The engine binary is only checked when configured as an absolute
	// path; bare names are resolved from PATH at launch time.
	if filepath.IsAbs(c.Engine.BinaryPath) {
		if _, err := os.Stat(c.Engine.BinaryPath); err != nil {
			return fmt.Errorf("engine binary not found at %s", c.Engine.BinaryPath)
		}
	}

	if c.Engine.Depth < 1 {
		c.Engine.Depth = 1
	}
	if c.Engine.MultiPV < 1 {
		c.Engine.MultiPV = 1
	}
	if c.Engine.Threads < 1 {
		c.Engine.Threads = 1
	}
	if c.Engine.HashMB < 16 {
		c.Engine.HashMB = 16
	}
	if c.Engine.HandshakeTimeoutSecs < 1 {
		c.Engine.HandshakeTimeoutSecs = 1
	}
	if c.Engine.StopTimeoutSecs < 1 {
		c.Engine.StopTimeoutSecs = 1
	}

	if c.Cache.Enabled && c.Cache.MaxItems < 1 {
		c.Cache.MaxItems = 1
	}

	switch c.App.Theme {
	case "", "light", "dark":
	default:
		return fmt.Errorf("unknown theme %q", c.App.Theme)
	}

	return nil
}

// GetConfigPath resolves the configuration file location.
func GetConfigPath() string {
	if path := os.Getenv("CHESSLENS_CONFIG"); path != "" {
		return path
	}

	if _, err := os.Stat("chesslens.json"); err == nil {
		return "chesslens.json"
	}

	if home, err := os.UserHomeDir(); err == nil {
		configPath := filepath.Join(home, ".chesslens", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	return ""
}
