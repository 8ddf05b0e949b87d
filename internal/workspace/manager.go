// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package workspace manages per-user workspace directories. Every user gets
// one directory under a shared root; the directory is the user's HOME, cwd,
// and TMPDIR for agent subprocesses, so its permissions are the isolation
// boundary between tenants.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Hyper-Int/OrcaGate/internal/errdefs"
	"github.com/Hyper-Int/OrcaGate/internal/logger"
)

// Manager creates, resolves and destroys user workspaces under a single
// root directory.
type Manager struct {
	root string
	log  *logger.Logger
}

// NewManager creates the workspace root (0755) if missing. The root is
// world-traversable; the per-user directories inside are not.
func NewManager(root string, log *logger.Logger) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace root: %w", err)
	}
	return &Manager{root: abs, log: log}, nil
}

// Root returns the workspaces root directory.
func (m *Manager) Root() string { return m.root }

// Get returns the workspace path for a user without touching the
// filesystem.
func (m *Manager) Get(userID string) string {
	return filepath.Join(m.root, userID)
}

// Ensure creates the user's workspace with owner-only permissions and
// verifies them after the fact. An existing workspace is re-verified, not
// recreated, so repeated calls are cheap and idempotent.
func (m *Manager) Ensure(userID string) (string, error) {
	if err := validateUserID(userID); err != nil {
		return "", err
	}

	dir := filepath.Join(m.root, userID)
	if !isPathWithin(dir, m.root) {
		return "", errdefs.Securityf("workspace setup", "workspace %q escapes root", userID)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating workspace: %w", err)
	}
	// MkdirAll leaves an existing dir's mode alone; force it.
	if err := os.Chmod(dir, 0o700); err != nil {
		return "", fmt.Errorf("setting workspace mode: %w", err)
	}

	// Trust the filesystem, then verify it. A mode check after the write
	// catches umask surprises and shared-volume ACL weirdness.
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("verifying workspace: %w", err)
	}
	if !info.IsDir() {
		return "", errdefs.Securityf("workspace setup", "%s exists and is not a directory", dir)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return "", errdefs.Securityf("workspace setup",
			"workspace %s has group/world access (mode %o)", dir, perm)
	}

	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0o700); err != nil {
		return "", fmt.Errorf("creating workspace tmp: %w", err)
	}
	return dir, nil
}

// Destroy removes the user's workspace tree. confirm guards against
// accidental calls; without it nothing is touched.
func (m *Manager) Destroy(userID string, confirm bool) error {
	if !confirm {
		return errdefs.Configf("workspace destroy requires confirmation")
	}
	if err := validateUserID(userID); err != nil {
		return err
	}

	dir := filepath.Join(m.root, userID)
	if !isPathWithin(dir, m.root) {
		return errdefs.Securityf("workspace destroy", "workspace %q escapes root", userID)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing workspace: %w", err)
	}
	m.log.Infof("workspace destroyed for user %s", userID[:min(8, len(userID))])
	return nil
}

// validateUserID rejects identifiers that could name anything outside the
// root. Identities are lowercase hex in practice; the check is belt and
// braces for other callers.
func validateUserID(userID string) error {
	if userID == "" {
		return errdefs.Configf("empty user id")
	}
	if strings.Contains(userID, "/") || strings.Contains(userID, "\\") || strings.Contains(userID, "..") {
		return errdefs.Securityf("workspace path", "user id %q contains path characters", userID)
	}
	return nil
}

// isPathWithin checks that path is inside root, avoiding the bare
// HasPrefix trap where /root-evil matches /root.
func isPathWithin(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
