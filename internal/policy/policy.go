// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package policy generates tool-permission documents for agent
// subprocesses. Three tiers trade capability against blast radius; every
// tier denies cross-workspace reads and privilege escalation.
package policy

import (
	"fmt"

	"github.com/Hyper-Int/OrcaGate/internal/errdefs"
)

// Tier selects a permission profile.
type Tier string

const (
	// TierStrict is deny-by-default with a short allowlist. Public-facing
	// deployments.
	TierStrict Tier = "strict"
	// TierStandard asks on unknown tools and allows the common dev loop.
	TierStandard Tier = "standard"
	// TierPermissive is for trusted dev/staging tenants only.
	TierPermissive Tier = "permissive"
)

// Permissions is the document passed to the agent CLI's settings.
type Permissions struct {
	DefaultMode  string   `json:"defaultMode"`
	AllowedTools []string `json:"allowedTools"`
	Deny         []string `json:"deny"`
}

// ForTier builds the permission document for a tier, scoped to one user's
// workspace under the shared root.
func ForTier(tier Tier, workspacesRoot, workspace string) (Permissions, error) {
	switch tier {
	case TierStrict:
		return strictPermissions(workspacesRoot, workspace), nil
	case TierStandard:
		return standardPermissions(workspacesRoot, workspace), nil
	case TierPermissive:
		return permissivePermissions(), nil
	default:
		return Permissions{}, errdefs.Configf("unknown policy tier %q", tier)
	}
}

func strictPermissions(root, ws string) Permissions {
	return Permissions{
		DefaultMode: "deny",
		AllowedTools: []string{
			"Read",
			fmt.Sprintf("Write(%s/*)", ws),
			fmt.Sprintf("Edit(%s/*)", ws),
			"Bash(git:*)",
			"Bash(npm:*)",
			"Bash(python:*)",
			"Bash(node:*)",
			"Bash(pip:*)",
		},
		Deny: []string{
			// Shared scratch space leaks other tenants' artifacts.
			"Bash(ls:/tmp/*)",
			"Bash(cat:/tmp/*)",
			"Bash(find:/tmp/*)",
			"Read(/tmp/*)",

			// Process table enumeration.
			"Bash(ps:*)",
			"Bash(top:*)",

			// /proc, except the process's own entries.
			"Read(/proc/*)!(/proc/self/*)",
			"Bash(cat:/proc/*)",

			// Other workspaces under the shared root.
			fmt.Sprintf("Read(%s/*)!%s", root, ws),
			fmt.Sprintf("Write(%s/*)!%s", root, ws),
			fmt.Sprintf("Bash(ls:%s)", root),

			// Symlinks pointed back into the root.
			fmt.Sprintf("Bash(ln:*:%s/*)", root),

			// System mutation.
			"Bash(sudo:*)",
			"Bash(chmod:*)",
			"Bash(chown:*)",
			"Bash(rm:/)*",
		},
	}
}

func standardPermissions(root, ws string) Permissions {
	return Permissions{
		DefaultMode: "ask",
		AllowedTools: []string{
			"Read",
			fmt.Sprintf("Write(%s/*)", ws),
			fmt.Sprintf("Edit(%s/*)", ws),
			"Bash(git:*)",
			"Bash(npm:*)",
			"Bash(python:*)",
			"Bash(node:*)",
			"Bash(pip:*)",
			"Bash(ps)",           // bare ps only
			"Read(/proc/self/*)", // own process info
		},
		Deny: []string{
			"Bash(cat:/tmp/*)",
			"Bash(find:/tmp/*)",
			"Read(/tmp/*)",

			fmt.Sprintf("Read(%s/*)!%s", root, ws),
			fmt.Sprintf("Write(%s/*)!%s", root, ws),

			"Bash(sudo:*)",
			"Bash(rm:/)*",
		},
	}
}

func permissivePermissions() Permissions {
	return Permissions{
		DefaultMode: "acceptEdits",
		AllowedTools: []string{
			"Read",
			"Write(*)",
			"Edit(*)",
			"Bash(*)",
		},
		Deny: []string{
			"Bash(sudo:*)",
			"Bash(rm:/)*",
			"Write(/etc/*)",
		},
	}
}
