// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Hyper-Int/OrcaGate/internal/agent"
	"github.com/Hyper-Int/OrcaGate/internal/credentials"
	"github.com/Hyper-Int/OrcaGate/internal/gateway"
	"github.com/Hyper-Int/OrcaGate/internal/mcpconfig"
	"github.com/Hyper-Int/OrcaGate/internal/policy"
)

// messageBody is the POST /v1/messages payload.
type messageBody struct {
	Messages       []agent.Message                 `json:"messages" binding:"required"`
	Model          string                          `json:"model"`
	SessionID      string                          `json:"session_id"`
	PersistSession bool                            `json:"persist_session"`
	Stream         bool                            `json:"stream"`
	Pooled         bool                            `json:"pooled"`
	MCPServers     map[string]mcpconfig.ServerSpec `json:"mcp_servers"`
	TimeoutSecs    int                             `json:"timeout"`
	Credentials    *credentialsBody                `json:"credentials"`
	Permissions    *policy.Permissions             `json:"permissions"`
}

// credentialsBody carries the optional fields beyond the bearer token.
type credentialsBody struct {
	RefreshToken     string   `json:"refresh_token"`
	ExpiresAt        int64    `json:"expires_at"`
	Scopes           []string `json:"scopes"`
	SubscriptionType string   `json:"subscription_type"`
}

func (s *server) buildRequest(c *gin.Context, body messageBody) (gateway.Request, bool) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"type": "error", "error": gin.H{
			"message": "missing bearer token",
			"code":    "unauthorized",
		}})
		return gateway.Request{}, false
	}

	bundle := credentials.Bundle{AccessToken: token}
	if body.Credentials != nil {
		bundle.RefreshToken = body.Credentials.RefreshToken
		bundle.ExpiresAt = body.Credentials.ExpiresAt
		bundle.Scopes = body.Credentials.Scopes
		bundle.SubscriptionType = body.Credentials.SubscriptionType
	}

	return gateway.Request{
		Credentials:         bundle,
		Messages:            body.Messages,
		Model:               body.Model,
		SessionID:           body.SessionID,
		PersistSession:      body.PersistSession,
		MCPServers:          body.MCPServers,
		Timeout:             time.Duration(body.TimeoutSecs) * time.Second,
		PermissionsOverride: body.Permissions,
	}, true
}

func (s *server) handleMessages(c *gin.Context) {
	var body messageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"type": "error", "error": gin.H{
			"message": err.Error(),
			"code":    "invalid_request",
		}})
		return
	}

	req, ok := s.buildRequest(c, body)
	if !ok {
		return
	}

	switch {
	case body.Pooled:
		events, err := s.gw.CreateMessagePooled(c.Request.Context(), req)
		if err != nil {
			s.writeError(c, err)
			return
		}
		s.writeEventStream(c, events)
	case body.Stream:
		events, err := s.gw.CreateMessageStreaming(c.Request.Context(), req)
		if err != nil {
			s.writeError(c, err)
			return
		}
		s.writeEventStream(c, events)
	default:
		out, err := s.gw.CreateMessage(c.Request.Context(), req)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/json", out)
	}
}

// writeEventStream relays agent events as server-sent events until the
// stream closes or the client disconnects.
func (s *server) writeEventStream(c *gin.Context, events <-chan agent.Event) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	done := c.Request.Context().Done()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.Writer.WriteString("data: ")
			c.Writer.Write(ev.Raw)
			c.Writer.WriteString("\n\n")
			c.Writer.Flush()
		case <-done:
			return
		}
	}
}
