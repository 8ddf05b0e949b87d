// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// streamableTransport keeps one long-lived POST open to the remote server.
// Requests go up the request body as newline-delimited JSON; responses
// come back the same way on the response body.
type streamableTransport struct {
	baseURL         string
	path            string
	headers         http.Header
	protocolVersion string
	log             *bridgeLog

	mu        sync.Mutex // serialises request/response pairs on the stream
	writer    *io.PipeWriter
	resp      *http.Response
	scanner   *bufio.Scanner
	nextID    int64
	toolCache []json.RawMessage
}

func newStreamableTransport(baseURL, path string, headers http.Header, protocolVersion string, log *bridgeLog) *streamableTransport {
	return &streamableTransport{
		baseURL:         baseURL,
		path:            path,
		headers:         headers,
		protocolVersion: protocolVersion,
		log:             log,
	}
}

// connect opens the stream and performs the MCP handshake: initialize,
// then tools/list, both answered in order on the same stream.
func (t *streamableTransport) connect() error {
	fullURL := strings.TrimSuffix(t.baseURL, "/") + t.path
	t.log.Infof("connecting via streamable HTTP: %s", fullURL)

	pr, pw := io.Pipe()
	req, err := http.NewRequest(http.MethodPost, fullURL, pr)
	if err != nil {
		return err
	}
	req.Header = t.headers.Clone()
	req.Header.Set("Content-Type", "application/json")

	// No client timeout: the stream lives as long as the bridge does.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("stream connection failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("stream connection failed: status %d", resp.StatusCode)
	}

	t.writer = pw
	t.resp = resp
	t.scanner = bufio.NewScanner(resp.Body)
	t.scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	t.log.Infof("streamable HTTP stream opened")

	initParams, _ := json.Marshal(map[string]interface{}{
		"protocolVersion": t.protocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]string{
			"name":    bridgeName,
			"version": bridgeVersion,
		},
	})
	initResult, err := t.roundTrip("initialize", initParams)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	var initDoc struct {
		ServerInfo struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	json.Unmarshal(initResult, &initDoc)
	t.log.Infof("server initialized: %s", initDoc.ServerInfo.Name)

	toolsResult, err := t.roundTrip("tools/list", json.RawMessage("{}"))
	if err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}
	var toolsDoc struct {
		Tools []json.RawMessage `json:"tools"`
	}
	if err := json.Unmarshal(toolsResult, &toolsDoc); err != nil {
		return fmt.Errorf("tools/list result: %w", err)
	}
	t.toolCache = toolsDoc.Tools
	t.log.Infof("discovered %d tools", len(t.toolCache))
	return nil
}

func (t *streamableTransport) tools() []json.RawMessage { return t.toolCache }

func (t *streamableTransport) callTool(params json.RawMessage) (json.RawMessage, error) {
	return t.roundTrip("tools/call", params)
}

// roundTrip writes one request line and reads one response line. The
// stream carries responses in request order, so pairs are serialised.
func (t *streamableTransport) roundTrip(method string, params json.RawMessage) (json.RawMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	line, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(fmt.Sprintf("%d", t.nextID)),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, err
	}
	if _, err := t.writer.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	for t.scanner.Scan() {
		text := strings.TrimSpace(t.scanner.Text())
		if text == "" {
			continue
		}
		var resp struct {
			Result json.RawMessage `json:"result"`
			Error  *rpcError       `json:"error"`
		}
		if err := json.Unmarshal([]byte(text), &resp); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("remote error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		if resp.Result == nil {
			return json.RawMessage("{}"), nil
		}
		return resp.Result, nil
	}
	if err := t.scanner.Err(); err != nil {
		return nil, fmt.Errorf("stream read: %w", err)
	}
	return nil, fmt.Errorf("stream closed unexpectedly")
}

func (t *streamableTransport) close() error {
	if t.writer != nil {
		t.writer.Close()
	}
	if t.resp != nil {
		return t.resp.Body.Close()
	}
	return nil
}
