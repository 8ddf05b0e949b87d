// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// gateway is the multi-tenant HTTP front door for the agent CLI. Each
// request is authenticated by OAuth bearer token, isolated into a per-user
// workspace, and dispatched to a single-shot, streaming, or pooled agent
// subprocess.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hyper-Int/OrcaGate/internal/config"
	"github.com/Hyper-Int/OrcaGate/internal/gateway"
	"github.com/Hyper-Int/OrcaGate/internal/logger"
	"github.com/Hyper-Int/OrcaGate/internal/pool"
	"github.com/Hyper-Int/OrcaGate/internal/workspace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Default().Fatalf("loading config: %v", err)
	}

	log := logger.New(cfg.Logging)
	defer log.Sync()

	ws, err := workspace.NewManager(cfg.Workspace.Root, log)
	if err != nil {
		log.Fatalf("workspace root: %v", err)
	}

	procs := pool.New(pool.Config{
		MaxIdleTime:     cfg.Pool.MaxIdleTime,
		CleanupInterval: cfg.Pool.CleanupInterval,
	}, log)

	gw := gateway.New(cfg, ws, procs, log)
	srv := newServer(gw, log)

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: srv.router(),
	}

	go func() {
		log.Infof("gateway listening on %s (tier %s, workspaces %s)",
			cfg.Server.Addr(), cfg.Security.Tier, cfg.Workspace.Root)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
	procs.Shutdown()
	log.Info("goodbye")
}
