// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package agent builds and runs Claude CLI subprocesses inside user
// workspaces, in single-shot print mode or bidirectional stream-json mode.
package agent

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultBinary is looked up on PATH when no explicit path is configured.
const DefaultBinary = "claude"

// modelAliases maps short model names to full identifiers. Unknown names
// pass through untouched so callers can pin exact versions.
var modelAliases = map[string]string{
	"opus":   "claude-opus-4-20250514",
	"sonnet": "claude-sonnet-4-5-20250929",
	"haiku":  "claude-3-5-haiku-20241022",
}

// ResolveModel expands a model alias.
func ResolveModel(model string) string {
	if full, ok := modelAliases[model]; ok {
		return full
	}
	return model
}

// ModelAliases returns a copy of the alias table.
func ModelAliases() map[string]string {
	out := make(map[string]string, len(modelAliases))
	for k, v := range modelAliases {
		out[k] = v
	}
	return out
}

// FindBinary resolves the agent CLI path. An explicit configured path wins;
// otherwise PATH is searched.
func FindBinary(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return exec.LookPath(DefaultBinary)
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Invocation describes one agent subprocess.
type Invocation struct {
	Binary    string
	Workspace string

	Model     string
	SessionID string // passed as --resume only when the session exists on disk
	Resume    bool

	// SkipPermissions adds the non-interactive permission bypass. Set when
	// MCP servers are configured; prompts cannot be answered headless.
	SkipPermissions bool

	SettingsJSON  string
	MCPConfigJSON string

	Messages []Message

	// Streaming selects stream-json input/output instead of a one-shot
	// prompt argument.
	Streaming bool
}

// Args assembles the CLI argument vector. Flag order matters only for the
// trailing "--" sentinel, which must separate the prompt from flag parsing
// whenever an MCP config is present.
func (inv Invocation) Args() []string {
	args := []string{"--print", "--model", ResolveModel(inv.Model)}

	if inv.SessionID != "" && inv.Resume {
		args = append(args, "--resume", inv.SessionID)
	}
	if inv.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	args = append(args, "--settings", inv.SettingsJSON)
	if inv.MCPConfigJSON != "" {
		args = append(args, "--mcp-config", inv.MCPConfigJSON)
	}

	if inv.Streaming {
		args = append(args,
			"--input-format", "stream-json",
			"--output-format", "stream-json",
			"--include-partial-messages",
			"--verbose",
		)
		return args
	}

	if inv.MCPConfigJSON != "" {
		args = append(args, "--")
	}
	return append(args, inv.Prompt())
}

// Prompt flattens the conversation into a single prompt string for
// single-shot mode. User turns pass through as-is; every other role is
// labelled with its capitalised name so a system or assistant turn cannot
// masquerade as user content.
func (inv Invocation) Prompt() string {
	parts := make([]string, 0, len(inv.Messages))
	for _, m := range inv.Messages {
		if m.Role == "user" || m.Role == "" {
			parts = append(parts, m.Content)
			continue
		}
		parts = append(parts, roleLabel(m.Role)+": "+m.Content)
	}
	return strings.Join(parts, "\n\n")
}

func roleLabel(role string) string {
	return strings.ToUpper(role[:1]) + role[1:]
}

// Env builds the subprocess environment. The workspace becomes HOME, PWD
// and TMPDIR so everything the CLI writes stays inside the tenant
// boundary. Only PATH is inherited from the gateway.
func (inv Invocation) Env() []string {
	path := os.Getenv("PATH")
	if path == "" {
		path = "/usr/bin:/bin"
	}
	return []string{
		"HOME=" + inv.Workspace,
		"PWD=" + inv.Workspace,
		"PATH=" + path,
		"TMPDIR=" + filepath.Join(inv.Workspace, "tmp"),
	}
}

// SessionExists reports whether a session id is referenced by any file in
// the workspace's agent config directory. The CLI persists sessions under
// .claude/ with the id embedded in file contents; scanning is crude but
// avoids guessing the CLI's storage layout. Unreadable files are skipped,
// and any error means "new session", which the CLI handles by creating
// one.
func SessionExists(claudeDir, sessionID string) bool {
	entries, err := os.ReadDir(claudeDir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(claudeDir, entry.Name()))
		if err != nil {
			continue
		}
		if strings.Contains(string(data), sessionID) {
			return true
		}
	}
	return false
}
