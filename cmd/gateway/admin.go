// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"pool_size": s.gw.PoolSize(),
	})
}

func (s *server) handleModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": s.gw.Models()})
}

func (s *server) handlePoolStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.gw.PoolStats())
}

// handleWorkspaceDestroy removes the caller's workspace. Requires
// confirm=true; destroying a workspace deletes session history and any
// files the agent created.
func (s *server) handleWorkspaceDestroy(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"type": "error", "error": gin.H{
			"message": "missing bearer token",
			"code":    "unauthorized",
		}})
		return
	}

	confirm := c.Query("confirm") == "true"
	if err := s.gw.DestroyWorkspace(token, confirm); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
