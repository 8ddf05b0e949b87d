// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Hyper-Int/OrcaGate/internal/agent"
	"github.com/Hyper-Int/OrcaGate/internal/credentials"
	"github.com/Hyper-Int/OrcaGate/internal/gateway"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The gateway fronts API clients, not browsers; bearer auth is the
	// boundary, not the Origin header.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsTurn is one client frame: a conversation turn for the pooled process.
type wsTurn struct {
	Messages  []agent.Message `json:"messages"`
	Model     string          `json:"model"`
	SessionID string          `json:"session_id"`
}

// handleStreamWS runs a bidirectional conversation over a WebSocket. Each
// client frame dispatches one turn to the user's pooled subprocess; every
// agent event comes back as its own frame.
func (s *server) handleStreamWS(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"type": "error", "error": gin.H{
			"message": "missing bearer token",
			"code":    "unauthorized",
		}})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		var turn wsTurn
		if err := conn.ReadJSON(&turn); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Warn("websocket read failed")
			}
			return
		}
		if len(turn.Messages) == 0 {
			conn.WriteMessage(websocket.TextMessage, agent.ErrorEvent("invalid_request", "missing messages").Raw)
			continue
		}

		req := gateway.Request{
			Credentials: credentials.Bundle{AccessToken: token},
			Messages:    turn.Messages,
			Model:       turn.Model,
			SessionID:   turn.SessionID,
		}
		events, err := s.gw.CreateMessagePooled(c.Request.Context(), req)
		if err != nil {
			s.writeWSError(conn, err)
			continue
		}
		for ev := range events {
			if err := conn.WriteMessage(websocket.TextMessage, ev.Raw); err != nil {
				s.log.WithError(err).Warn("websocket write failed")
				return
			}
		}
	}
}

func (s *server) writeWSError(conn *websocket.Conn, err error) {
	ev := agent.ErrorEvent("request_error", err.Error())
	conn.WriteMessage(websocket.TextMessage, ev.Raw)
}
