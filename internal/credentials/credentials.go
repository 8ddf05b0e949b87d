// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package credentials materialises per-user OAuth bundles on disk for agent
// subprocesses and destroys them without leaving recoverable token bytes.
package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Hyper-Int/OrcaGate/internal/errdefs"
	"github.com/Hyper-Int/OrcaGate/internal/logger"
)

const (
	// Dir is the agent CLI's config directory inside a workspace.
	Dir = ".claude"
	// File is the credentials file name the agent CLI reads.
	File = ".credentials.json"
)

// Bundle is a user's OAuth material. JSON tags are the wire form used in
// the settings document passed to the agent; the on-disk credentials file
// uses a different casing (see fileDocument).
type Bundle struct {
	AccessToken      string   `json:"access_token"`
	RefreshToken     string   `json:"refresh_token,omitempty"`
	ExpiresAt        int64    `json:"expires_at,omitempty"`
	Scopes           []string `json:"scopes,omitempty"`
	SubscriptionType string   `json:"subscription_type,omitempty"`
}

// defaultScopes is applied when a bundle carries none.
var defaultScopes = []string{"user:inference", "user:profile"}

// fileDocument is the credentials file layout the agent CLI expects.
type fileDocument struct {
	ClaudeAiOauth fileOauth `json:"claudeAiOauth"`
}

type fileOauth struct {
	AccessToken      string   `json:"accessToken"`
	RefreshToken     string   `json:"refreshToken,omitempty"`
	ExpiresAt        int64    `json:"expiresAt,omitempty"`
	Scopes           []string `json:"scopes"`
	SubscriptionType string   `json:"subscriptionType,omitempty"`
}

// WithDefaults returns the bundle with empty fields filled in.
func (b Bundle) WithDefaults() Bundle {
	if len(b.Scopes) == 0 {
		b.Scopes = defaultScopes
	}
	if b.SubscriptionType == "" {
		b.SubscriptionType = "max"
	}
	return b
}

// Materialise writes the credentials file into workspaceDir with owner-only
// permissions, verifying modes after each write. On any security failure
// the half-created config directory is removed before returning.
func Materialise(workspaceDir string, b Bundle) (string, error) {
	if b.AccessToken == "" {
		return "", errdefs.Configf("empty access token")
	}
	b = b.WithDefaults()

	configDir := filepath.Join(workspaceDir, Dir)
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.Chmod(configDir, 0o700); err != nil {
		return "", fmt.Errorf("setting config dir mode: %w", err)
	}

	doc := fileDocument{ClaudeAiOauth: fileOauth{
		AccessToken:      b.AccessToken,
		RefreshToken:     b.RefreshToken,
		ExpiresAt:        b.ExpiresAt,
		Scopes:           b.Scopes,
		SubscriptionType: b.SubscriptionType,
	}}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling credentials: %w", err)
	}

	path := filepath.Join(configDir, File)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		os.RemoveAll(configDir)
		return "", fmt.Errorf("writing credentials: %w", err)
	}
	// WriteFile mode only applies on create; clamp an existing file too.
	if err := os.Chmod(path, 0o600); err != nil {
		os.RemoveAll(configDir)
		return "", fmt.Errorf("setting credentials mode: %w", err)
	}

	for target, want := range map[string]os.FileMode{configDir: 0o700, path: 0o600} {
		info, err := os.Stat(target)
		if err != nil {
			os.RemoveAll(configDir)
			return "", fmt.Errorf("verifying credentials: %w", err)
		}
		if perm := info.Mode().Perm(); perm&0o077 != 0 || perm != want {
			os.RemoveAll(configDir)
			return "", errdefs.Securityf("credential setup",
				"%s has mode %o, want %o", target, perm, want)
		}
	}

	return path, nil
}

// Destroy zero-overwrites the credentials file, unlinks it, and removes the
// config directory. Every step is best-effort: a failure is logged and the
// remaining steps still run, so a partial cleanup never blocks workspace
// teardown.
func Destroy(workspaceDir string, log *logger.Logger) {
	configDir := filepath.Join(workspaceDir, Dir)
	path := filepath.Join(configDir, File)

	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		zeros := make([]byte, info.Size())
		if err := os.WriteFile(path, zeros, 0o600); err != nil {
			log.WithError(err).Warn("failed to overwrite credentials file")
		}
		if err := os.Remove(path); err != nil {
			log.WithError(err).Warn("failed to remove credentials file")
		}
	}

	if err := os.RemoveAll(configDir); err != nil {
		log.WithError(err).Warn("failed to remove config dir")
	}
}
