// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package mcpconfig

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Hyper-Int/OrcaGate/internal/credentials"
	"github.com/Hyper-Int/OrcaGate/internal/logger"
	"github.com/Hyper-Int/OrcaGate/internal/policy"
)

// ProtocolVersion is the MCP protocol version the bridge negotiates.
const ProtocolVersion = "2024-11-05"

// bridgeName is the file name the bridge binary gets inside a workspace.
const bridgeName = "mcp_proxy"

// Builder produces the --settings and --mcp-config documents for one
// invocation.
type Builder struct {
	bridgePath string
	log        *logger.Logger
}

// NewBuilder takes the path of the compiled bridge binary that gets
// deployed into workspaces for remote servers.
func NewBuilder(bridgePath string, log *logger.Logger) *Builder {
	return &Builder{bridgePath: bridgePath, log: log}
}

// settingsDocument is the --settings payload: the user's OAuth bundle plus
// the permission policy.
type settingsDocument struct {
	Credentials credentials.Bundle `json:"credentials"`
	Permissions policy.Permissions `json:"permissions"`
}

// SettingsJSON serialises credentials and permissions for --settings.
func (b *Builder) SettingsJSON(bundle credentials.Bundle, perms policy.Permissions) (string, error) {
	data, err := json.Marshal(settingsDocument{
		Credentials: bundle.WithDefaults(),
		Permissions: perms,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling settings: %w", err)
	}
	return string(data), nil
}

// serverEntry is one mcpServers value in the --mcp-config payload.
type serverEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// MCPConfigJSON builds the --mcp-config payload for the given servers,
// deploying the bridge into workspaceDir for each remote spec. Returns ""
// when servers is empty.
func (b *Builder) MCPConfigJSON(workspaceDir string, servers map[string]ServerSpec) (string, error) {
	if len(servers) == 0 {
		return "", nil
	}

	entries := make(map[string]serverEntry, len(servers))
	for name, spec := range servers {
		if err := spec.Validate(); err != nil {
			return "", fmt.Errorf("mcp server %q: %w", name, err)
		}

		if !spec.Remote() {
			entries[name] = serverEntry{Command: spec.Command, Args: spec.Args, Env: spec.Env}
			b.log.Debugf("mcp local configured: %s (%s)", name, spec.Command)
			continue
		}

		proxyPath, err := b.deployBridge(workspaceDir)
		if err != nil {
			return "", fmt.Errorf("mcp server %q: %w", name, err)
		}
		entries[name] = serverEntry{
			Command: proxyPath,
			Args:    bridgeArgs(spec),
		}
		b.log.Debugf("mcp remote configured: %s (%s -> %s)", name, spec.Transport, spec.URL)
	}

	data, err := json.Marshal(map[string]map[string]serverEntry{"mcpServers": entries})
	if err != nil {
		return "", fmt.Errorf("marshaling mcp config: %w", err)
	}
	return string(data), nil
}

// bridgeArgs assembles the bridge argv for one remote spec. The bearer
// token rides in argv deliberately: argv is private to the workspace owner
// while env vars leak through /proc on shared hosts.
func bridgeArgs(spec ServerSpec) []string {
	var args []string
	switch spec.Transport {
	case TransportSSE:
		args = append(args, "--sse", spec.URL)
	case TransportStreamableHTTP:
		args = append(args, "--streamableHttp", spec.URL)
		if spec.path() != DefaultStreamablePath {
			args = append(args, "--streamableHttpPath", spec.path())
		}
	}
	if spec.AuthToken != "" {
		args = append(args, "--oauth2Bearer", spec.AuthToken)
	}
	args = append(args, "--protocolVersion", ProtocolVersion)
	args = append(args, "--logLevel", "info")
	return args
}

// deployBridge copies the bridge binary into the workspace (0700). An
// existing copy is reused only while it still matches the source binary;
// a gateway upgrade changes size or mtime and forces a fresh copy. The
// mode is re-asserted on every request.
func (b *Builder) deployBridge(workspaceDir string) (string, error) {
	dst := filepath.Join(workspaceDir, bridgeName)

	srcInfo, err := os.Stat(b.bridgePath)
	if err != nil {
		return "", fmt.Errorf("stating bridge binary: %w", err)
	}
	if info, err := os.Stat(dst); err == nil && info.Mode().IsRegular() &&
		info.Size() == srcInfo.Size() && !info.ModTime().Before(srcInfo.ModTime()) {
		if err := os.Chmod(dst, 0o700); err != nil {
			return "", fmt.Errorf("restoring bridge mode: %w", err)
		}
		return dst, nil
	}

	src, err := os.Open(b.bridgePath)
	if err != nil {
		return "", fmt.Errorf("opening bridge binary: %w", err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o700)
	if err != nil {
		return "", fmt.Errorf("creating workspace bridge: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("copying bridge binary: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("flushing workspace bridge: %w", err)
	}
	// OpenFile's mode only applies on create; clamp a refreshed copy too.
	if err := os.Chmod(dst, 0o700); err != nil {
		return "", fmt.Errorf("restoring bridge mode: %w", err)
	}
	return dst, nil
}
