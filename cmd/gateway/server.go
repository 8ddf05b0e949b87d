// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Hyper-Int/OrcaGate/internal/errdefs"
	"github.com/Hyper-Int/OrcaGate/internal/gateway"
	"github.com/Hyper-Int/OrcaGate/internal/logger"
)

type server struct {
	gw  *gateway.Gateway
	log *logger.Logger
}

func newServer(gw *gateway.Gateway, log *logger.Logger) *server {
	return &server{gw: gw, log: log}
}

func (s *server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.handleHealth)

	v1 := r.Group("/v1")
	{
		v1.POST("/messages", s.handleMessages)
		v1.GET("/models", s.handleModels)
		v1.GET("/pool/stats", s.handlePoolStats)
		v1.DELETE("/workspace", s.handleWorkspaceDestroy)
		v1.GET("/stream", s.handleStreamWS)
	}
	return r
}

func (s *server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Infof("%s %s %d %s",
			c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

// bearerToken extracts the OAuth access token. The token is never logged.
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// writeError maps gateway error kinds to HTTP statuses and the agent's
// error envelope shape.
func (s *server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := err.Error()

	var exitErr *errdefs.ExitError
	switch {
	case errdefs.IsConfig(err):
		status, code = http.StatusBadRequest, "invalid_request"
	case errdefs.IsSecurity(err):
		// Never echo filesystem detail from security failures.
		s.log.WithError(err).Error("security failure")
		code = "security_failure"
		message = "request could not be processed securely"
	case errors.Is(err, errdefs.ErrTimeout):
		status, code = http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &exitErr):
		status, code = http.StatusBadGateway, "cli_error"
	}

	c.JSON(status, gin.H{"type": "error", "error": gin.H{
		"message": message,
		"code":    code,
	}})
}
