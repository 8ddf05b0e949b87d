// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package pool keeps one long-lived agent subprocess per user, so repeat
// requests skip spawn overhead. Processes are reaped after an idle period;
// workspaces survive reaping.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/Hyper-Int/OrcaGate/internal/agent"
	"github.com/Hyper-Int/OrcaGate/internal/identity"
	"github.com/Hyper-Int/OrcaGate/internal/logger"
)

// terminateGrace is how long a reaped process gets between SIGTERM and
// SIGKILL.
const terminateGrace = 5 * time.Second

// pollInterval is the liveness-check cadence while waiting for events.
const pollInterval = 100 * time.Millisecond

// Config bounds pooled process lifetime.
type Config struct {
	MaxIdleTime     time.Duration
	CleanupInterval time.Duration
}

// SpawnFunc builds the streaming invocation for a user's subprocess. It
// runs without the pool lock held, so it may touch the filesystem.
type SpawnFunc func() (agent.Invocation, error)

// Pool maps user ids to live subprocesses.
type Pool struct {
	cfg Config
	log *logger.Logger

	mu      sync.Mutex
	entries map[string]*entry

	stop     chan struct{}
	stopOnce sync.Once
	reaperWG sync.WaitGroup
}

// New starts a pool and its background reaper.
func New(cfg Config, log *logger.Logger) *Pool {
	p := &Pool{
		cfg:     cfg,
		log:     log,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	p.reaperWG.Add(1)
	go p.reapLoop()
	return p
}

// Dispatch sends one conversation turn to the user's pooled subprocess,
// creating it if needed, and streams the turn's events into the returned
// channel. The channel is closed when the turn completes, the process
// dies, or ctx is cancelled. The subprocess stays alive after a completed
// turn.
func (p *Pool) Dispatch(ctx context.Context, userID string, spawn SpawnFunc, msgs []agent.Message) <-chan agent.Event {
	out := make(chan agent.Event, 16)
	go func() {
		defer close(out)
		p.runTurn(ctx, userID, spawn, msgs, out)
	}()
	return out
}

func (p *Pool) runTurn(ctx context.Context, userID string, spawn SpawnFunc, msgs []agent.Message, out chan<- agent.Event) {
	e, err := p.getOrCreate(userID, spawn)
	if err != nil {
		emit(ctx, out, agent.ErrorEvent("pooled_request_error", err.Error()))
		return
	}

	if err := sendAll(e.proc, msgs); err != nil {
		// The process can die between turns without the liveness check
		// noticing. One recreate covers that window; a second failure is
		// a real error.
		p.log.Warnf("stale pooled process for %s, recreating: %v", identity.Mask(userID), err)
		p.remove(userID, e)

		e, err = p.getOrCreate(userID, spawn)
		if err != nil {
			emit(ctx, out, agent.ErrorEvent("pooled_request_error", err.Error()))
			return
		}
		if err := sendAll(e.proc, msgs); err != nil {
			emit(ctx, out, agent.ErrorEvent("stdin_error", "failed to send message: "+err.Error()))
			return
		}
	}

	defer e.touch()

	for {
		select {
		case ev, ok := <-e.proc.Events():
			if !ok {
				// stdout EOF: the process is gone.
				p.log.Warnf("pooled process exited for %s", identity.Mask(userID))
				p.remove(userID, e)
				return
			}
			if !emit(ctx, out, ev) {
				return
			}
			if ev.Type == agent.EventTypeResult {
				// Turn complete; keep the process for the next request.
				return
			}
		case <-time.After(pollInterval):
			if !e.proc.Alive() {
				p.remove(userID, e)
				return
			}
		case <-ctx.Done():
			// Caller went away mid-turn. The process keeps running; the
			// reaper handles it if the user never returns.
			return
		}
	}
}

// getOrCreate returns the user's live entry, spawning one if absent or
// dead. The pool lock is held only for map accesses; when two requests
// race to create the same user's process, the loser's spawn is torn down.
func (p *Pool) getOrCreate(userID string, spawn SpawnFunc) (*entry, error) {
	p.mu.Lock()
	if e, ok := p.entries[userID]; ok {
		if e.proc.Alive() {
			e.touch()
			p.mu.Unlock()
			p.log.Debugf("reusing pooled process for %s (idle %.1fs)",
				identity.Mask(userID), e.idle().Seconds())
			return e, nil
		}
		delete(p.entries, userID)
	}
	p.mu.Unlock()

	inv, err := spawn()
	if err != nil {
		return nil, err
	}
	proc, err := agent.Start(inv, p.log)
	if err != nil {
		return nil, err
	}
	e := newEntry(proc, userID, inv.SessionID, inv.Workspace)

	p.mu.Lock()
	if existing, ok := p.entries[userID]; ok && existing.proc.Alive() {
		p.mu.Unlock()
		proc.Terminate(terminateGrace)
		return existing, nil
	}
	p.entries[userID] = e
	p.mu.Unlock()

	p.log.Infof("pooled process created for %s (pid %d)", identity.Mask(userID), proc.PID())
	return e, nil
}

// remove drops an entry and terminates its process. Only the exact entry
// is removed; a concurrent recreate is left alone.
func (p *Pool) remove(userID string, e *entry) {
	p.mu.Lock()
	if current, ok := p.entries[userID]; ok && current == e {
		delete(p.entries, userID)
	}
	p.mu.Unlock()
	e.proc.Terminate(terminateGrace)
}

func (p *Pool) reapLoop() {
	defer p.reaperWG.Done()

	ticker := time.NewTicker(p.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.reapIdle()
		case <-p.stop:
			return
		}
	}
}

// reapIdle terminates processes idle beyond MaxIdleTime. Workspaces are
// deliberately left in place; the next request reuses them.
func (p *Pool) reapIdle() {
	var victims []*entry
	p.mu.Lock()
	for userID, e := range p.entries {
		if e.idle() > p.cfg.MaxIdleTime {
			delete(p.entries, userID)
			victims = append(victims, e)
		}
	}
	p.mu.Unlock()

	for _, e := range victims {
		p.log.Infof("reaping idle pooled process for %s (idle %.1fs)",
			identity.Mask(e.userID), e.idle().Seconds())
		e.proc.Terminate(terminateGrace)
	}
}

// Size returns the number of pooled processes.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Shutdown stops the reaper and terminates every pooled process.
func (p *Pool) Shutdown() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.reaperWG.Wait()

	p.mu.Lock()
	entries := make([]*entry, 0, len(p.entries))
	for userID, e := range p.entries {
		delete(p.entries, userID)
		entries = append(entries, e)
	}
	p.mu.Unlock()

	for _, e := range entries {
		e.proc.Terminate(terminateGrace)
	}
}

// sendAll writes every message of the turn to the process's stdin.
func sendAll(proc *agent.Process, msgs []agent.Message) error {
	for _, m := range msgs {
		if err := proc.Send(m); err != nil {
			return err
		}
	}
	return nil
}

// emit forwards one event unless the caller has gone.
func emit(ctx context.Context, out chan<- agent.Event, ev agent.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
