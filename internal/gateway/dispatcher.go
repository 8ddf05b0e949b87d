// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package gateway ties identity, workspaces, credentials, policy and agent
// invocation together behind three entry points: single-shot, dedicated
// streaming, and pooled streaming.
package gateway

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/Hyper-Int/OrcaGate/internal/agent"
	"github.com/Hyper-Int/OrcaGate/internal/config"
	"github.com/Hyper-Int/OrcaGate/internal/credentials"
	"github.com/Hyper-Int/OrcaGate/internal/identity"
	"github.com/Hyper-Int/OrcaGate/internal/logger"
	"github.com/Hyper-Int/OrcaGate/internal/mcpconfig"
	"github.com/Hyper-Int/OrcaGate/internal/policy"
	"github.com/Hyper-Int/OrcaGate/internal/pool"
	"github.com/Hyper-Int/OrcaGate/internal/workspace"
)

// Gateway brokers agent access for many tenants.
type Gateway struct {
	cfg        *config.Config
	workspaces *workspace.Manager
	builder    *mcpconfig.Builder
	pool       *pool.Pool
	log        *logger.Logger
}

// New wires a gateway from its parts.
func New(cfg *config.Config, ws *workspace.Manager, procs *pool.Pool, log *logger.Logger) *Gateway {
	return &Gateway{
		cfg:        cfg,
		workspaces: ws,
		builder:    mcpconfig.NewBuilder(cfg.Agent.BridgePath, log),
		pool:       procs,
		log:        log,
	}
}

// prepared carries everything a dispatch method needs after tenant setup.
type prepared struct {
	userID    string
	workspace string
	inv       agent.Invocation
	sessionID string
}

// prepare runs the per-request tenant pipeline: identity, workspace,
// credentials, policy, MCP config, and command assembly.
func (g *Gateway) prepare(req Request) (*prepared, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	userID := identity.FromToken(req.Credentials.AccessToken)
	g.log.Infof("processing request for user %s", identity.Mask(userID))

	wsDir, err := g.workspaces.Ensure(userID)
	if err != nil {
		return nil, err
	}
	if _, err := credentials.Materialise(wsDir, req.Credentials); err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if req.PersistSession && sessionID == "" {
		sessionID = identity.NewSessionID(userID)
	}

	perms, err := g.permissions(req, wsDir)
	if err != nil {
		return nil, err
	}
	settingsJSON, err := g.builder.SettingsJSON(req.Credentials, perms)
	if err != nil {
		return nil, err
	}
	mcpJSON, err := g.builder.MCPConfigJSON(wsDir, req.MCPServers)
	if err != nil {
		return nil, err
	}

	binary, err := agent.FindBinary(g.cfg.Agent.BinaryPath)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = g.cfg.Agent.DefaultModel
	}

	claudeDir := filepath.Join(wsDir, credentials.Dir)
	inv := agent.Invocation{
		Binary:          binary,
		Workspace:       wsDir,
		Model:           model,
		SessionID:       sessionID,
		Resume:          sessionID != "" && agent.SessionExists(claudeDir, sessionID),
		SkipPermissions: len(req.MCPServers) > 0 || g.cfg.Security.SkipPermissionPrompts,
		SettingsJSON:    settingsJSON,
		MCPConfigJSON:   mcpJSON,
		Messages:        req.Messages,
	}

	return &prepared{userID: userID, workspace: wsDir, inv: inv, sessionID: sessionID}, nil
}

func (g *Gateway) permissions(req Request, wsDir string) (policy.Permissions, error) {
	if req.PermissionsOverride != nil {
		return *req.PermissionsOverride, nil
	}
	return policy.ForTier(policy.Tier(g.cfg.Security.Tier), g.workspaces.Root(), wsDir)
}

// CreateMessage runs a single-shot invocation and returns the agent's
// response document.
func (g *Gateway) CreateMessage(ctx context.Context, req Request) (json.RawMessage, error) {
	p, err := g.prepare(req)
	if err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = g.cfg.Agent.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := agent.Run(ctx, p.inv, g.log)
	if err != nil {
		return nil, err
	}
	g.log.Infof("response delivered for user %s", identity.Mask(p.userID))
	return out, nil
}

// CreateMessageStreaming runs a dedicated streaming subprocess for one
// turn. The subprocess is terminated when the turn completes, the stream
// ends, or the caller disconnects; nothing is pooled.
func (g *Gateway) CreateMessageStreaming(ctx context.Context, req Request) (<-chan agent.Event, error) {
	p, err := g.prepare(req)
	if err != nil {
		return nil, err
	}

	proc, err := agent.Start(p.inv, g.log)
	if err != nil {
		return nil, err
	}

	out := make(chan agent.Event, 16)
	go func() {
		defer close(out)
		defer proc.Terminate(5 * time.Second)

		for _, m := range req.Messages {
			if err := proc.Send(m); err != nil {
				g.relay(ctx, out, agent.ErrorEvent("stdin_error", "failed to send message: "+err.Error()))
				return
			}
		}

		for {
			select {
			case ev, ok := <-proc.Events():
				if !ok {
					g.log.Infof("stream completed for user %s", identity.Mask(p.userID))
					return
				}
				if !g.relay(ctx, out, ev) {
					return
				}
				if ev.Type == agent.EventTypeResult {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// CreateMessagePooled dispatches the turn to the user's pooled subprocess,
// which stays alive for subsequent requests.
func (g *Gateway) CreateMessagePooled(ctx context.Context, req Request) (<-chan agent.Event, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	userID := identity.FromToken(req.Credentials.AccessToken)

	spawn := func() (agent.Invocation, error) {
		p, err := g.prepare(req)
		if err != nil {
			return agent.Invocation{}, err
		}
		inv := p.inv
		inv.Streaming = true
		return inv, nil
	}
	return g.pool.Dispatch(ctx, userID, spawn, req.Messages), nil
}

func (g *Gateway) relay(ctx context.Context, out chan<- agent.Event, ev agent.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// WorkspacePath returns the workspace for a token without creating it.
func (g *Gateway) WorkspacePath(token string) string {
	return g.workspaces.Get(identity.FromToken(token))
}

// DestroyWorkspace zeroises the tenant's credentials and removes their
// workspace tree. confirm must be true.
func (g *Gateway) DestroyWorkspace(token string, confirm bool) error {
	userID := identity.FromToken(token)
	if confirm {
		credentials.Destroy(g.workspaces.Get(userID), g.log)
	}
	return g.workspaces.Destroy(userID, confirm)
}

// PoolStats snapshots the process pool.
func (g *Gateway) PoolStats() pool.Stats { return g.pool.Snapshot() }

// PoolSize returns the number of pooled subprocesses.
func (g *Gateway) PoolSize() int { return g.pool.Size() }

// Models returns the model alias table for discovery endpoints.
func (g *Gateway) Models() map[string]string { return agent.ModelAliases() }
