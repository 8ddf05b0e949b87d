// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package agent

import (
	"testing"
	"time"

	"github.com/Hyper-Int/OrcaGate/internal/logger"
)

// echoAgent reads stream-json lines from stdin and answers each with a
// delta event and a result event.
const echoAgent = `
while IFS= read -r line; do
  echo '{"type":"content_block_delta","delta":{"text":"chunk"}}'
  echo '{"type":"result","result":"done"}'
done
`

func startStub(t *testing.T, script string) *Process {
	t.Helper()
	inv := Invocation{
		Binary:       stubAgent(t, script),
		Workspace:    stubWorkspace(t),
		Model:        "sonnet",
		SettingsJSON: "{}",
	}
	p, err := Start(inv, logger.Nop())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { p.Terminate(time.Second) })
	return p
}

func TestProcessSendReceive(t *testing.T) {
	p := startStub(t, echoAgent)

	if err := p.Send(Message{Role: "user", Content: "hello"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	var types []string
	deadline := time.After(5 * time.Second)
	for len(types) < 2 {
		select {
		case ev, ok := <-p.Events():
			if !ok {
				t.Fatalf("stream closed early, got %v", types)
			}
			types = append(types, ev.Type)
		case <-deadline:
			t.Fatalf("timed out, got %v", types)
		}
	}

	if types[0] != "content_block_delta" || types[1] != EventTypeResult {
		t.Errorf("unexpected event order: %v", types)
	}
	if !p.Alive() {
		t.Error("process should stay alive after a result event")
	}
}

func TestProcessEventsClosedOnExit(t *testing.T) {
	p := startStub(t, `echo '{"type":"result"}'; exit 0`)

	var sawResult bool
	for ev := range p.Events() {
		if ev.Type == EventTypeResult {
			sawResult = true
		}
	}
	// Channel closed means stdout hit EOF.
	if !sawResult {
		t.Error("expected a result event before close")
	}

	deadline := time.After(5 * time.Second)
	for p.Alive() {
		select {
		case <-deadline:
			t.Fatal("process still alive after exit")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestProcessSkipsGarbageLines(t *testing.T) {
	p := startStub(t, `echo 'not json'; echo '{"type":"result"}'`)

	select {
	case ev, ok := <-p.Events():
		if !ok {
			t.Fatal("stream closed before any event")
		}
		if ev.Type != EventTypeResult {
			t.Errorf("expected garbage skipped, got %q event", ev.Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestProcessTerminate(t *testing.T) {
	p := startStub(t, `trap '' TERM; while true; do sleep 1; done`)

	start := time.Now()
	p.Terminate(200 * time.Millisecond)
	if p.Alive() {
		t.Error("process alive after terminate")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("terminate took too long")
	}
}

func TestErrorEventShape(t *testing.T) {
	ev := ErrorEvent("stream_error", "boom")
	if ev.Type != "error" {
		t.Errorf("unexpected type %s", ev.Type)
	}
	want := `{"error":{"code":"stream_error","message":"boom"},"type":"error"}`
	if string(ev.Raw) != want {
		t.Errorf("raw = %s, want %s", ev.Raw, want)
	}
}
