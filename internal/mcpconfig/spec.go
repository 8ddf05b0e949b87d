// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package mcpconfig assembles the settings and MCP-server documents handed
// to the agent CLI. Local MCP servers are passed through as subprocess
// specs; remote ones get the stdio bridge deployed into the workspace.
package mcpconfig

import (
	"github.com/Hyper-Int/OrcaGate/internal/errdefs"
)

// Transport names for remote MCP servers.
const (
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamableHttp"
)

// DefaultStreamablePath is the endpoint path used when a streamableHttp
// spec names none.
const DefaultStreamablePath = "/mcp"

// ServerSpec describes one MCP server, local or remote. Exactly one of
// Command and URL must be set.
type ServerSpec struct {
	// Local subprocess servers.
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// Remote servers, reached through the bridge.
	URL       string `json:"url,omitempty"`
	Transport string `json:"transport,omitempty"`

	// Remote authentication. AuthToken is inlined into the bridge argv so
	// it never lands in a file or the subprocess environment.
	AuthType  string `json:"auth_type,omitempty"`
	AuthToken string `json:"auth_token,omitempty"`

	// StreamableHTTPPath overrides the endpoint path for streamableHttp.
	StreamableHTTPPath string `json:"streamable_http_path,omitempty"`
}

// Remote reports whether the spec targets a remote server.
func (s ServerSpec) Remote() bool { return s.URL != "" }

// Validate checks the spec's internal consistency.
func (s ServerSpec) Validate() error {
	if s.Command == "" && s.URL == "" {
		return errdefs.Configf("mcp server needs either command or url")
	}
	if s.Command != "" && s.URL != "" {
		return errdefs.Configf("mcp server cannot have both command and url")
	}
	if s.URL != "" {
		switch s.Transport {
		case TransportSSE, TransportStreamableHTTP:
		default:
			return errdefs.Configf("remote mcp server needs transport %q or %q, got %q",
				TransportSSE, TransportStreamableHTTP, s.Transport)
		}
	}
	if s.AuthToken != "" {
		switch s.AuthType {
		case "jwt", "oauth", "bearer":
		default:
			return errdefs.Configf("auth_token requires auth_type jwt, oauth or bearer")
		}
	}
	return nil
}

// path returns the streamableHttp endpoint path with the default applied.
func (s ServerSpec) path() string {
	if s.StreamableHTTPPath == "" {
		return DefaultStreamablePath
	}
	return s.StreamableHTTPPath
}
