// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package pool

import (
	"sync"
	"time"

	"github.com/Hyper-Int/OrcaGate/internal/agent"
)

// entry tracks one pooled subprocess and its usage timestamps. Timestamp
// access goes through the methods; the embedded mutex is never held while
// touching the process.
type entry struct {
	proc      *agent.Process
	userID    string
	sessionID string
	workspace string
	createdAt time.Time

	mu       sync.Mutex
	lastUsed time.Time
}

func newEntry(proc *agent.Process, userID, sessionID, workspace string) *entry {
	now := time.Now()
	return &entry{
		proc:      proc,
		userID:    userID,
		sessionID: sessionID,
		workspace: workspace,
		createdAt: now,
		lastUsed:  now,
	}
}

func (e *entry) touch() {
	e.mu.Lock()
	e.lastUsed = time.Now()
	e.mu.Unlock()
}

func (e *entry) idle() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return time.Since(e.lastUsed)
}

func (e *entry) lastUsedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastUsed
}
