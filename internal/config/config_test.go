// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithPath(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, "standard", cfg.Security.Tier)
	assert.Equal(t, 180*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, 300*time.Second, cfg.Pool.MaxIdleTime)
	assert.Equal(t, 60*time.Second, cfg.Pool.CleanupInterval)
	assert.Equal(t, "/tmp/claude_users", cfg.Workspace.Root)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9100
security:
  tier: permissive
workspace:
  root: /srv/agents
pool:
  max_idle_time: 30s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := LoadWithPath(dir)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "permissive", cfg.Security.Tier)
	assert.Equal(t, "/srv/agents", cfg.Workspace.Root)
	assert.Equal(t, 30*time.Second, cfg.Pool.MaxIdleTime)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ORCAGATE_SECURITY_TIER", "strict")
	t.Setenv("ORCAGATE_SERVER_PORT", "7777")

	cfg, err := LoadWithPath(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "strict", cfg.Security.Tier)
	assert.Equal(t, 7777, cfg.Server.Port)
}

func TestLoadRejectsBadTier(t *testing.T) {
	t.Setenv("ORCAGATE_SECURITY_TIER", "yolo")

	_, err := LoadWithPath(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "security tier")
}
