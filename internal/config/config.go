// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package config loads gateway configuration from config.yaml and
// ORCAGATE_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Hyper-Int/OrcaGate/internal/logger"
)

// Config is the root configuration for the gateway.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Pool      PoolConfig      `mapstructure:"pool"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   logger.Config   `mapstructure:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// AgentConfig configures agent CLI invocation.
type AgentConfig struct {
	// BinaryPath overrides PATH lookup of the agent CLI.
	BinaryPath string `mapstructure:"binary_path"`
	// BridgePath points at the compiled mcp-bridge binary deployed into
	// workspaces for remote MCP servers.
	BridgePath string `mapstructure:"bridge_path"`
	// DefaultModel is used when a request names no model.
	DefaultModel string `mapstructure:"default_model"`
	// Timeout bounds a single-shot invocation.
	Timeout time.Duration `mapstructure:"timeout"`
}

// WorkspaceConfig configures per-user workspace directories.
type WorkspaceConfig struct {
	Root string `mapstructure:"root"`
}

// PoolConfig configures the persistent subprocess pool.
type PoolConfig struct {
	MaxIdleTime     time.Duration `mapstructure:"max_idle_time"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// SecurityConfig selects the tool policy tier applied to every invocation.
type SecurityConfig struct {
	// Tier is strict, standard, or permissive.
	Tier string `mapstructure:"tier"`
	// SkipPermissionPrompts always passes the agent's non-interactive
	// permission bypass flag. Without it the flag is only added when MCP
	// servers are configured, where prompts cannot be answered headless.
	// The policy document remains the enforcement layer either way.
	SkipPermissionPrompts bool `mapstructure:"skip_permission_prompts"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from the working directory.
func Load() (*Config, error) {
	return LoadWithPath(".")
}

// LoadWithPath reads config.yaml from dir, overlaying environment
// variables. A missing file is not an error; env and defaults suffice.
func LoadWithPath(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	setDefaults(v)

	v.SetEnvPrefix("ORCAGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("agent.binary_path", "")
	v.SetDefault("agent.bridge_path", "/usr/local/bin/mcp-bridge")
	v.SetDefault("agent.default_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("agent.timeout", 180*time.Second)
	v.SetDefault("workspace.root", "/tmp/claude_users")
	v.SetDefault("pool.max_idle_time", 300*time.Second)
	v.SetDefault("pool.cleanup_interval", 60*time.Second)
	v.SetDefault("security.tier", "standard")
	v.SetDefault("security.skip_permission_prompts", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "auto")
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Security.Tier {
	case "strict", "standard", "permissive":
	default:
		return fmt.Errorf("invalid security tier %q", c.Security.Tier)
	}
	if c.Agent.Timeout <= 0 {
		return fmt.Errorf("agent timeout must be positive")
	}
	if c.Pool.MaxIdleTime <= 0 || c.Pool.CleanupInterval <= 0 {
		return fmt.Errorf("pool intervals must be positive")
	}
	return nil
}
