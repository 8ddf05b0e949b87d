// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"

	"github.com/Hyper-Int/OrcaGate/internal/errdefs"
	"github.com/Hyper-Int/OrcaGate/internal/logger"
)

// Run executes a single-shot invocation and returns the agent's response
// document. The context bounds the whole subprocess; on expiry the process
// is killed and ErrTimeout returned.
func Run(ctx context.Context, inv Invocation, log *logger.Logger) (json.RawMessage, error) {
	cmd := exec.CommandContext(ctx, inv.Binary, inv.Args()...)
	cmd.Dir = inv.Workspace
	cmd.Env = inv.Env()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if s := strings.TrimSpace(stderr.String()); s != "" {
		log.Warnf("agent stderr: %.500s", s)
	}

	if ctx.Err() == context.DeadlineExceeded {
		return nil, errdefs.ErrTimeout
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = strings.TrimSpace(stdout.String())
			}
			if msg == "" {
				msg = "unknown agent error"
			}
			return nil, &errdefs.ExitError{Code: exitErr.ExitCode(), Stderr: msg}
		}
		return nil, err
	}

	out := strings.TrimSpace(stdout.String())
	if json.Valid([]byte(out)) {
		return json.RawMessage(out), nil
	}

	// Plain-text output still gets returned, wrapped in a message
	// envelope so callers always see one document shape.
	envelope := map[string]interface{}{
		"type":    "message",
		"content": []map[string]string{{"type": "text", "text": out}},
		"model":   ResolveModel(inv.Model),
		"usage":   map[string]interface{}{},
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}
	return data, nil
}
