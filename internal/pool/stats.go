// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package pool

import (
	"time"

	"github.com/Hyper-Int/OrcaGate/internal/identity"
)

// Stats is a point-in-time snapshot of the pool.
type Stats struct {
	PoolSize        int         `json:"pool_size"`
	MaxIdleTime     float64     `json:"max_idle_time"`
	CleanupInterval float64     `json:"cleanup_interval"`
	ActiveUsers     []UserStats `json:"active_users"`
}

// UserStats describes one pooled process. The user id is masked; stats
// endpoints must not leak full identities.
type UserStats struct {
	UserID    string  `json:"user_id"`
	IdleTime  float64 `json:"idle_time"`
	Uptime    float64 `json:"uptime"`
	CreatedAt string  `json:"created_at"`
	LastUsed  string  `json:"last_used"`
	PID       int     `json:"pid"`
	Alive     bool    `json:"alive"`
}

const statsTimeFormat = "2006-01-02T15:04:05Z"

// Snapshot collects pool statistics.
func (p *Pool) Snapshot() Stats {
	p.mu.Lock()
	entries := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	p.mu.Unlock()

	stats := Stats{
		PoolSize:        len(entries),
		MaxIdleTime:     p.cfg.MaxIdleTime.Seconds(),
		CleanupInterval: p.cfg.CleanupInterval.Seconds(),
		ActiveUsers:     make([]UserStats, 0, len(entries)),
	}
	now := time.Now()
	for _, e := range entries {
		stats.ActiveUsers = append(stats.ActiveUsers, UserStats{
			UserID:    identity.Mask(e.userID),
			IdleTime:  round1(now.Sub(e.lastUsedAt()).Seconds()),
			Uptime:    round1(now.Sub(e.createdAt).Seconds()),
			CreatedAt: e.createdAt.UTC().Format(statsTimeFormat),
			LastUsed:  e.lastUsedAt().UTC().Format(statsTimeFormat),
			PID:       e.proc.PID(),
			Alive:     e.proc.Alive(),
		})
	}
	return stats
}

func round1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}
