// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package gateway

import (
	"time"

	"github.com/Hyper-Int/OrcaGate/internal/agent"
	"github.com/Hyper-Int/OrcaGate/internal/credentials"
	"github.com/Hyper-Int/OrcaGate/internal/errdefs"
	"github.com/Hyper-Int/OrcaGate/internal/mcpconfig"
	"github.com/Hyper-Int/OrcaGate/internal/policy"
)

// Request is one message-creation call. Credentials identify and
// authenticate the tenant; everything else shapes the invocation.
type Request struct {
	Credentials credentials.Bundle

	Messages []agent.Message
	Model    string

	// SessionID resumes a named conversation. PersistSession auto-creates
	// a session id when none is given, so the response can be continued.
	SessionID      string
	PersistSession bool

	MCPServers map[string]mcpconfig.ServerSpec

	// Timeout overrides the configured single-shot timeout.
	Timeout time.Duration

	// PermissionsOverride replaces the tier policy for this request only.
	PermissionsOverride *policy.Permissions
}

func (r Request) validate() error {
	if r.Credentials.AccessToken == "" {
		return errdefs.Configf("missing access token")
	}
	if len(r.Messages) == 0 {
		return errdefs.Configf("missing messages")
	}
	return nil
}
