// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package errdefs holds the error kinds shared across the gateway. Each
// kind maps to a distinct caller remedy: security failures abort hard,
// config errors are caller mistakes, stale-pool errors invite one retry.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout reports an agent invocation exceeding its deadline.
	ErrTimeout = errors.New("agent invocation timed out")
	// ErrPoolStale reports a pooled subprocess that died between turns.
	// Callers may retry once; the retry gets a fresh subprocess.
	ErrPoolStale = errors.New("pooled agent process is stale")
)

// SecurityError reports an isolation guarantee that could not be
// established: wrong file modes, traversal attempts, tampered workspaces.
type SecurityError struct {
	Op  string
	Err error
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security failure during %s: %v", e.Op, e.Err)
}

func (e *SecurityError) Unwrap() error { return e.Err }

// Security wraps err as a SecurityError for operation op.
func Security(op string, err error) error {
	return &SecurityError{Op: op, Err: err}
}

// Securityf builds a SecurityError from a format string.
func Securityf(op, format string, args ...interface{}) error {
	return &SecurityError{Op: op, Err: fmt.Errorf(format, args...)}
}

// IsSecurity reports whether err is a SecurityError.
func IsSecurity(err error) bool {
	var se *SecurityError
	return errors.As(err, &se)
}

// ConfigError reports invalid caller-supplied or operator-supplied
// configuration.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("configuration error: %v", e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// Config wraps err as a ConfigError.
func Config(err error) error { return &ConfigError{Err: err} }

// Configf builds a ConfigError from a format string.
func Configf(format string, args ...interface{}) error {
	return &ConfigError{Err: fmt.Errorf(format, args...)}
}

// IsConfig reports whether err is a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ExitError reports a non-zero agent CLI exit. Stderr is captured for the
// caller; the gateway does not interpret it.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("agent exited with code %d: %s", e.Code, e.Stderr)
}

// StreamError reports a failure while relaying streaming events.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string { return fmt.Sprintf("stream error: %v", e.Err) }
func (e *StreamError) Unwrap() error { return e.Err }

// BridgeError reports a bridge transport failure against a remote MCP
// server.
type BridgeError struct {
	Method string
	Err    error
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("bridge %s failed: %v", e.Method, e.Err)
}

func (e *BridgeError) Unwrap() error { return e.Err }
