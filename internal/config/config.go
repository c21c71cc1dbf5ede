// Package config resolves the hatidata-mcp CLI surface: flags are the
// stable, spec'd contract (see SPEC_FULL.md §6); an optional TOML file layers
// underneath them for settings the CLI surface doesn't define (log level,
// the maintenance sweep cadence).
package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the hatidata-mcp server.
// Precedence: CLI flags > config file > defaults. HATIDATA_API_KEY fills
// Password only when neither a flag nor the file has set it.
type Config struct {
	// Local selects the embedded engine instead of the remote SQL backend.
	Local bool
	// DBPath is the embedded storage file used when Local is true.
	DBPath string
	// AgentID is the default agent_id for tools that require one in local mode.
	AgentID string

	// Host, Port, Database, User, Password address the remote backend.
	Host     string
	Port     int
	Database string
	User     string
	Password string

	Log     LogConfig     `toml:"log"`
	Sweep   SweepConfig   `toml:"maintenance"`
	fileSet bool          // true once a config file has been layered in, for diagnostics
}

// LogConfig holds ambient logging configuration (not part of the spec'd CLI surface).
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// SweepConfig holds the ambient branch-TTL maintenance sweep configuration.
type SweepConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"` // cron expression, e.g. "*/5 * * * *"
}

// Load parses CLI flags (and env, and an optional TOML file) into a Config.
// args excludes the program name (pass os.Args[1:]).
func Load(args []string) (*Config, error) {
	cfg := &Config{
		DBPath:  ".hati/local.duckdb",
		AgentID: "mcp-agent",
		Host:    "localhost",
		Port:    5439,
		Log:     LogConfig{Level: "info"},
		Sweep:   SweepConfig{Enabled: false, Cron: "*/5 * * * *"},
	}

	var configPath string
	fs := flag.NewFlagSet("hatidata-mcp", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "optional TOML config file (ambient settings only)")
	fs.BoolVar(&cfg.Local, "local", false, "use the embedded local engine instead of the remote backend")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "storage file for local mode")
	fs.StringVar(&cfg.AgentID, "agent-id", cfg.AgentID, "default agent_id for tools that require one in local mode")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "remote backend address")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "remote backend port")
	fs.StringVar(&cfg.Database, "database", cfg.Database, "remote backend database name")
	fs.StringVar(&cfg.User, "user", cfg.User, "remote backend user")
	fs.StringVar(&cfg.Password, "password", cfg.Password, "remote backend password")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Layer the ambient config file underneath whatever flags already set.
	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}

	// Re-parse flags so they win over anything the file just set (flags are
	// the stable wire contract; the file only ever supplies defaults).
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Password == "" {
		cfg.Password = os.Getenv("HATIDATA_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile finds and parses the ambient TOML config file. If no file is
// found, this is a no-op (the file is always optional).
func (c *Config) loadFile(configPath string) error {
	path := resolveConfigPath(configPath)
	if path == "" {
		return nil
	}

	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	c.fileSet = true
	return nil
}

// resolveConfigPath determines which config file to use. Returns empty
// string if no config file is found (config file is optional).
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("HATIDATA_MCP_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("hatidata-mcp.toml"); err == nil {
		return "hatidata-mcp.toml"
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.config/hatidata-mcp/hatidata-mcp.toml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate checks that required fields are present for the selected mode.
func (c *Config) Validate() error {
	if c.Local {
		return nil
	}
	if c.Database == "" {
		return fmt.Errorf("--database is required in remote mode")
	}
	return nil
}
