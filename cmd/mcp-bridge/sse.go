// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// sseTransport talks to servers exposing an SSE event stream plus a
// sibling POST endpoint for JSON-RPC requests.
type sseTransport struct {
	url     string
	headers http.Header
	log     *bridgeLog

	client    *http.Client
	nextID    atomic.Int64
	toolCache []json.RawMessage
}

func newSSETransport(url string, headers http.Header, log *bridgeLog) *sseTransport {
	return &sseTransport{
		url:     url,
		headers: headers,
		log:     log,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// messageURL is the request endpoint next to the event stream.
func (t *sseTransport) messageURL() string {
	if strings.HasSuffix(t.url, "/sse") {
		return strings.TrimSuffix(t.url, "/sse") + "/message"
	}
	return strings.Replace(t.url, "/sse", "/message", 1)
}

// connect opens the event stream long enough to see the server's
// connection status event, then discovers tools over the POST endpoint.
func (t *sseTransport) connect() error {
	t.log.Infof("connecting via SSE: %s", t.url)

	req, err := http.NewRequest(http.MethodGet, t.url, nil)
	if err != nil {
		return err
	}
	req.Header = t.headers.Clone()

	// The handshake read has its own timeout; the stream client's overall
	// timeout would kill a healthy long poll.
	streamClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("sse connection failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sse connection failed: status %d", resp.StatusCode)
	}
	t.log.Infof("SSE connected (status %d)", resp.StatusCode)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event struct {
			Type   string `json:"type"`
			Status string `json:"status"`
			Tools  int    `json:"tools"`
		}
		if err := json.Unmarshal([]byte(line[len("data: "):]), &event); err != nil {
			t.log.Errorf("invalid JSON in SSE event: %v", err)
			continue
		}
		if event.Type == "connection" {
			t.log.Infof("server status: %s, tools: %d", event.Status, event.Tools)
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("sse stream read: %w", err)
	}

	return t.discoverTools()
}

func (t *sseTransport) discoverTools() error {
	result, err := t.post("tools/list", json.RawMessage("{}"))
	if err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}

	var doc struct {
		Tools []json.RawMessage `json:"tools"`
	}
	if err := json.Unmarshal(result, &doc); err != nil {
		return fmt.Errorf("tools/list result: %w", err)
	}
	t.toolCache = doc.Tools
	t.log.Infof("discovered %d tools", len(t.toolCache))
	return nil
}

func (t *sseTransport) tools() []json.RawMessage { return t.toolCache }

func (t *sseTransport) callTool(params json.RawMessage) (json.RawMessage, error) {
	return t.post("tools/call", params)
}

// post sends one JSON-RPC request to the message endpoint and returns the
// result field.
func (t *sseTransport) post(method string, params json.RawMessage) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(fmt.Sprintf("%d", t.nextID.Add(1))),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, t.messageURL(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = t.headers.Clone()
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("remote error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if rpcResp.Result == nil {
		return json.RawMessage("{}"), nil
	}
	return rpcResp.Result, nil
}

func (t *sseTransport) close() error {
	t.client.CloseIdleConnections()
	return nil
}
