// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package agent

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/Hyper-Int/OrcaGate/internal/logger"
)

// Event is one stream-json line from the agent. Raw preserves the exact
// bytes for re-emission; Type is extracted for dispatch decisions.
type Event struct {
	Type string
	Raw  json.RawMessage
}

// EventTypeResult marks the end of a conversation turn.
const EventTypeResult = "result"

// ErrorEvent builds a synthetic error event in the agent's own envelope
// shape, so stream consumers handle failures like any other event.
func ErrorEvent(code, message string) Event {
	raw, _ := json.Marshal(map[string]interface{}{
		"type": "error",
		"error": map[string]string{
			"message": message,
			"code":    code,
		},
	})
	return Event{Type: "error", Raw: raw}
}

// maxEventSize bounds a single stream-json line.
const maxEventSize = 10 * 1024 * 1024

// eventBuffer is the channel capacity between the stdout reader and the
// consumer. A slow consumer backpressures the reader, not the subprocess.
const eventBuffer = 256

// Process is a running stream-json agent subprocess. Events delivers
// parsed stdout lines and is closed when stdout reaches EOF, which is the
// end-of-process signal consumers select on.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	events chan Event
	exited chan struct{}
	log    *logger.Logger
}

// Start launches a streaming invocation. The returned process has its
// stdout and stderr readers already running.
func Start(inv Invocation, log *logger.Logger) (*Process, error) {
	inv.Streaming = true

	cmd := exec.Command(inv.Binary, inv.Args()...)
	cmd.Dir = inv.Workspace
	cmd.Env = inv.Env()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting agent: %w", err)
	}

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		events: make(chan Event, eventBuffer),
		exited: make(chan struct{}),
		log:    log,
	}

	go p.readStdout(stdout)
	go p.readStderr(stderr)
	go func() {
		cmd.Wait()
		close(p.exited)
	}()

	return p, nil
}

// readStdout parses stream-json lines into events. Closing the events
// channel at EOF is the stream's end sentinel.
func (p *Process) readStdout(r io.Reader) {
	defer close(p.events)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(line), &head); err != nil {
			p.log.Warnf("unparseable agent output: %.100s", line)
			continue
		}
		p.events <- Event{Type: head.Type, Raw: json.RawMessage(line)}
	}
	if err := scanner.Err(); err != nil {
		p.log.WithError(err).Warn("agent stdout read failed")
	}
}

func (p *Process) readStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			p.log.Warnf("agent stderr: %s", line)
		}
	}
}

// Events returns the stream of parsed agent output.
func (p *Process) Events() <-chan Event { return p.events }

// Send writes one user message as a stream-json stdin line.
func (p *Process) Send(m Message) error {
	frame := struct {
		Type    string  `json:"type"`
		Message Message `json:"message"`
	}{Type: "user", Message: m}
	if frame.Message.Role == "" {
		frame.Message.Role = "user"
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_, err = p.stdin.Write(append(data, '\n'))
	return err
}

// Alive reports whether the subprocess is still running.
func (p *Process) Alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// PID returns the subprocess id.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Terminate stops the subprocess: close stdin, SIGTERM, and SIGKILL if it
// has not exited within the grace period.
func (p *Process) Terminate(grace time.Duration) {
	p.stdin.Close()

	if !p.Alive() {
		return
	}
	p.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-p.exited:
	case <-time.After(grace):
		p.log.Warnf("agent pid %d ignored SIGTERM, killing", p.PID())
		p.cmd.Process.Kill()
		<-p.exited
	}
}
