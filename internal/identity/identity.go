// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package identity derives stable per-user identifiers from OAuth access
// tokens. The identifier doubles as the user's workspace directory name, so
// it must never contain path separators or traversal sequences.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// IDLength is the number of hex characters in a user identity.
const IDLength = 16

// FromToken derives the user identity from an access token: the first
// 16 hex characters of the token's SHA-256 digest. The same token always
// yields the same identity; distinct tokens collide with negligible
// probability at this length.
func FromToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:IDLength]
}

// NewSessionID generates a fresh conversation session identifier scoped to
// a user. Used when a caller asks for session persistence without naming a
// session.
func NewSessionID(userID string) string {
	return fmt.Sprintf("%s-conv-%s", userID, uuid.NewString())
}

// Mask shortens an identity for log output. Full identities stay out of
// logs and stats payloads.
func Mask(userID string) string {
	if len(userID) <= 8 {
		return userID
	}
	return userID[:8] + "..."
}
