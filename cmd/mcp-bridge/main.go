// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// mcp-bridge exposes a remote MCP server (SSE or streamable HTTP) as a
// local stdio MCP server, so agent CLIs that only speak stdio can use it.
// It is deployed into tenant workspaces by the gateway; stdout carries the
// protocol and all logging goes to stderr.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
)

const (
	bridgeName    = "mcp-bridge"
	bridgeVersion = "1.0.0"

	// maxLineSize bounds one JSON-RPC line in either direction.
	maxLineSize = 10 * 1024 * 1024
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInternalError  = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// transport is a connection to the remote MCP server. connect performs the
// handshake and caches the remote tool list.
type transport interface {
	connect() error
	tools() []json.RawMessage
	callTool(params json.RawMessage) (json.RawMessage, error)
	close() error
}

// headerFlags collects repeatable --header "Key: Value" arguments.
type headerFlags []string

func (h *headerFlags) String() string { return strings.Join(*h, ", ") }

func (h *headerFlags) Set(v string) error {
	*h = append(*h, v)
	return nil
}

func parseHeaders(raw []string) (http.Header, error) {
	headers := http.Header{}
	for _, entry := range raw {
		key, value, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("invalid header %q, want 'Key: Value'", entry)
		}
		headers.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return headers, nil
}

// bridgeLog is leveled stderr logging. Level none silences everything;
// stdout stays protocol-only regardless.
type bridgeLog struct {
	debug bool
	quiet bool
}

func newBridgeLog(level string) *bridgeLog {
	return &bridgeLog{debug: level == "debug", quiet: level == "none"}
}

func (l *bridgeLog) Debugf(format string, args ...interface{}) {
	if l.debug && !l.quiet {
		log.Printf("[%s] DEBUG: %s", bridgeName, fmt.Sprintf(format, args...))
	}
}

func (l *bridgeLog) Infof(format string, args ...interface{}) {
	if !l.quiet {
		log.Printf("[%s] INFO: %s", bridgeName, fmt.Sprintf(format, args...))
	}
}

func (l *bridgeLog) Errorf(format string, args ...interface{}) {
	if !l.quiet {
		log.Printf("[%s] ERROR: %s", bridgeName, fmt.Sprintf(format, args...))
	}
}

func main() {
	var (
		sseURL          = flag.String("sse", "", "SSE URL to connect to (e.g. https://server/sse)")
		streamableURL   = flag.String("streamableHttp", "", "streamable HTTP base URL (e.g. https://server)")
		streamablePath  = flag.String("streamableHttpPath", "/mcp", "path for the streamable HTTP endpoint")
		oauth2Bearer    = flag.String("oauth2Bearer", "", "OAuth2 bearer token for authentication")
		protocolVersion = flag.String("protocolVersion", "2024-11-05", "MCP protocol version")
		logLevel        = flag.String("logLevel", "info", "logging level: debug, info or none")
		headers         headerFlags
	)
	flag.Var(&headers, "header", "custom header 'Key: Value' (repeatable)")
	flag.Parse()

	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags)
	logger := newBridgeLog(*logLevel)

	if (*sseURL == "") == (*streamableURL == "") {
		fmt.Fprintln(os.Stderr, "exactly one of --sse or --streamableHttp is required")
		flag.Usage()
		os.Exit(2)
	}

	httpHeaders, err := parseHeaders(headers)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *oauth2Bearer != "" {
		httpHeaders.Set("Authorization", "Bearer "+*oauth2Bearer)
	}

	var remote transport
	if *sseURL != "" {
		remote = newSSETransport(*sseURL, httpHeaders, logger)
	} else {
		remote = newStreamableTransport(*streamableURL, *streamablePath, httpHeaders, *protocolVersion, logger)
	}

	if err := remote.connect(); err != nil {
		logger.Errorf("remote connection failed: %v", err)
		os.Exit(1)
	}
	defer remote.close()

	srv := &stdioServer{
		remote:          remote,
		protocolVersion: *protocolVersion,
		log:             logger,
		out:             os.Stdout,
	}
	srv.run(os.Stdin)
}

// stdioServer answers MCP requests on stdin/stdout, forwarding tool calls
// to the remote transport.
type stdioServer struct {
	remote          transport
	protocolVersion string
	log             *bridgeLog

	stdoutMu sync.Mutex
	out      io.Writer
}

func (s *stdioServer) run(in io.Reader) {
	s.log.Infof("stdio MCP server ready, waiting for requests")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.handleLine(line)
	}
	if err := scanner.Err(); err != nil {
		s.log.Errorf("stdin read failed: %v", err)
		return
	}
	s.log.Infof("EOF received, shutting down")
}

func (s *stdioServer) handleLine(line string) {
	var req rpcRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		s.log.Errorf("invalid JSON request: %v", err)
		s.writeResponse(rpcResponse{
			JSONRPC: "2.0",
			ID:      json.RawMessage("null"),
			Error:   &rpcError{Code: codeParseError, Message: "parse error"},
		})
		return
	}

	s.log.Debugf("received request: %s (id=%s)", req.Method, req.ID)

	// Notifications get no response.
	if req.Method == "notifications/initialized" {
		return
	}

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "initialize":
		resp.Result = map[string]interface{}{
			"protocolVersion": s.protocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{"listChanged": false},
			},
			"serverInfo": map[string]interface{}{
				"name":    bridgeName,
				"version": bridgeVersion,
			},
		}
		s.log.Infof("initialize handshake complete")

	case "tools/list":
		resp.Result = map[string]interface{}{"tools": s.remote.tools()}

	case "tools/call":
		result, err := s.remote.callTool(req.Params)
		if err != nil {
			s.log.Errorf("tool call failed: %v", err)
			resp.Error = &rpcError{Code: codeInternalError, Message: err.Error()}
		} else {
			resp.Result = result
		}

	case "ping":
		resp.Result = map[string]interface{}{}

	default:
		s.log.Infof("unsupported method: %s", req.Method)
		resp.Error = &rpcError{
			Code:    codeMethodNotFound,
			Message: "Method not found: " + req.Method,
		}
	}

	s.writeResponse(resp)
}

// writeResponse serialises one response line under the stdout mutex so
// concurrent writers cannot interleave protocol frames.
func (s *stdioServer) writeResponse(resp rpcResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Errorf("marshaling response: %v", err)
		return
	}
	s.stdoutMu.Lock()
	defer s.stdoutMu.Unlock()
	fmt.Fprintln(s.out, string(data))
}
