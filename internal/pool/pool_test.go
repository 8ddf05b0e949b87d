// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package pool

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Hyper-Int/OrcaGate/internal/agent"
	"github.com/Hyper-Int/OrcaGate/internal/logger"
)

// echoAgent answers every stdin line with a delta and a result event and
// keeps running, like the real CLI in stream-json mode.
const echoAgent = `#!/bin/sh
while IFS= read -r line; do
  echo '{"type":"content_block_delta","delta":{"text":"chunk"}}'
  echo '{"type":"result","result":"done"}'
done
`

// oneShotAgent answers a single turn and exits, simulating a process that
// dies between requests.
const oneShotAgent = `#!/bin/sh
IFS= read -r line
echo '{"type":"result","result":"done"}'
exit 0
`

func testSpawn(t *testing.T, script string) SpawnFunc {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "claude")
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	ws := t.TempDir()
	os.MkdirAll(filepath.Join(ws, "tmp"), 0o700)
	return func() (agent.Invocation, error) {
		return agent.Invocation{
			Binary:       bin,
			Workspace:    ws,
			Model:        "sonnet",
			SettingsJSON: "{}",
			Streaming:    true,
		}, nil
	}
}

func testPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	p := New(cfg, logger.Nop())
	t.Cleanup(p.Shutdown)
	return p
}

func collect(t *testing.T, events <-chan agent.Event) []agent.Event {
	t.Helper()
	var out []agent.Event
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("timed out collecting events, have %d", len(out))
		}
	}
}

func TestDispatchYieldsTurn(t *testing.T) {
	p := testPool(t, Config{MaxIdleTime: time.Minute, CleanupInterval: time.Minute})
	spawn := testSpawn(t, echoAgent)

	events := collect(t, p.Dispatch(context.Background(), "user-a", spawn,
		[]agent.Message{{Role: "user", Content: "hi"}}))

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[len(events)-1].Type != agent.EventTypeResult {
		t.Errorf("expected final result event, got %s", events[len(events)-1].Type)
	}
	if p.Size() != 1 {
		t.Errorf("process should stay pooled after a turn, size=%d", p.Size())
	}
}

func TestDispatchReusesProcess(t *testing.T) {
	p := testPool(t, Config{MaxIdleTime: time.Minute, CleanupInterval: time.Minute})
	spawn := testSpawn(t, echoAgent)

	collect(t, p.Dispatch(context.Background(), "user-a", spawn,
		[]agent.Message{{Content: "one"}}))
	pid1 := p.Snapshot().ActiveUsers[0].PID

	collect(t, p.Dispatch(context.Background(), "user-a", spawn,
		[]agent.Message{{Content: "two"}}))
	pid2 := p.Snapshot().ActiveUsers[0].PID

	if pid1 != pid2 {
		t.Errorf("expected same process across turns, pids %d and %d", pid1, pid2)
	}
}

func TestDispatchIsolatesUsers(t *testing.T) {
	p := testPool(t, Config{MaxIdleTime: time.Minute, CleanupInterval: time.Minute})

	collect(t, p.Dispatch(context.Background(), "user-a", testSpawn(t, echoAgent),
		[]agent.Message{{Content: "a"}}))
	collect(t, p.Dispatch(context.Background(), "user-b", testSpawn(t, echoAgent),
		[]agent.Message{{Content: "b"}}))

	if p.Size() != 2 {
		t.Errorf("expected one process per user, size=%d", p.Size())
	}
}

func TestDispatchRecreatesDeadProcess(t *testing.T) {
	p := testPool(t, Config{MaxIdleTime: time.Minute, CleanupInterval: time.Minute})
	spawn := testSpawn(t, oneShotAgent)

	first := collect(t, p.Dispatch(context.Background(), "user-a", spawn,
		[]agent.Message{{Content: "one"}}))
	if len(first) == 0 || first[len(first)-1].Type != agent.EventTypeResult {
		t.Fatalf("first turn failed: %+v", first)
	}

	// The one-shot process has exited; the next dispatch must transparently
	// get a fresh one.
	second := collect(t, p.Dispatch(context.Background(), "user-a", spawn,
		[]agent.Message{{Content: "two"}}))
	var sawResult bool
	for _, ev := range second {
		if ev.Type == agent.EventTypeResult {
			sawResult = true
		}
		if ev.Type == "error" {
			t.Errorf("unexpected error event: %s", ev.Raw)
		}
	}
	if !sawResult {
		t.Error("second turn produced no result after recreate")
	}
}

func TestReaperTerminatesIdle(t *testing.T) {
	p := testPool(t, Config{MaxIdleTime: 100 * time.Millisecond, CleanupInterval: 50 * time.Millisecond})
	spawn := testSpawn(t, echoAgent)

	events := p.Dispatch(context.Background(), "user-a", spawn,
		[]agent.Message{{Content: "hi"}})
	collect(t, events)

	deadline := time.After(5 * time.Second)
	for p.Size() != 0 {
		select {
		case <-deadline:
			t.Fatal("idle process not reaped")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestReaperKeepsWorkspace(t *testing.T) {
	p := testPool(t, Config{MaxIdleTime: 50 * time.Millisecond, CleanupInterval: 25 * time.Millisecond})

	bin := filepath.Join(t.TempDir(), "claude")
	os.WriteFile(bin, []byte(echoAgent), 0o755)
	ws := t.TempDir()
	os.MkdirAll(filepath.Join(ws, "tmp"), 0o700)
	spawn := func() (agent.Invocation, error) {
		return agent.Invocation{Binary: bin, Workspace: ws, Model: "sonnet", SettingsJSON: "{}", Streaming: true}, nil
	}

	collect(t, p.Dispatch(context.Background(), "user-a", spawn,
		[]agent.Message{{Content: "hi"}}))

	deadline := time.After(5 * time.Second)
	for p.Size() != 0 {
		select {
		case <-deadline:
			t.Fatal("idle process not reaped")
		case <-time.After(20 * time.Millisecond):
		}
	}

	if _, err := os.Stat(ws); err != nil {
		t.Errorf("workspace must survive reaping: %v", err)
	}
}

func TestSnapshotMasksUserIDs(t *testing.T) {
	p := testPool(t, Config{MaxIdleTime: time.Minute, CleanupInterval: time.Minute})

	collect(t, p.Dispatch(context.Background(), "abcdef0123456789", testSpawn(t, echoAgent),
		[]agent.Message{{Content: "hi"}}))

	stats := p.Snapshot()
	if stats.PoolSize != 1 {
		t.Fatalf("expected pool size 1, got %d", stats.PoolSize)
	}
	u := stats.ActiveUsers[0]
	if u.UserID != "abcdef01..." {
		t.Errorf("user id not masked: %s", u.UserID)
	}
	if !u.Alive || u.PID == 0 {
		t.Errorf("expected live process in stats: %+v", u)
	}
	if !strings.HasSuffix(u.CreatedAt, "Z") {
		t.Errorf("timestamps should be UTC: %s", u.CreatedAt)
	}
}

func TestShutdownTerminatesAll(t *testing.T) {
	p := New(Config{MaxIdleTime: time.Minute, CleanupInterval: time.Minute}, logger.Nop())

	collect(t, p.Dispatch(context.Background(), "user-a", testSpawn(t, echoAgent),
		[]agent.Message{{Content: "hi"}}))

	p.Shutdown()
	if p.Size() != 0 {
		t.Errorf("expected empty pool after shutdown, size=%d", p.Size())
	}
}
