// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeSSEServer serves the event stream on /sse and JSON-RPC on /message.
func fakeSSEServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/sse", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", `{"type":"connection","status":"ok","tools":1}`)
	})

	mux.HandleFunc("/message", func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
		switch req.Method {
		case "tools/list":
			resp.Result = map[string]interface{}{
				"tools": []map[string]string{{"name": "search"}},
			}
		case "tools/call":
			if r.Header.Get("Authorization") != "Bearer tok" {
				resp.Error = &rpcError{Code: -32000, Message: "unauthorized"}
				break
			}
			resp.Result = map[string]interface{}{
				"content": []map[string]string{{"type": "text", "text": "found"}},
			}
		default:
			resp.Error = &rpcError{Code: codeMethodNotFound, Message: "method not found"}
		}
		json.NewEncoder(w).Encode(resp)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSSEConnectDiscoversTools(t *testing.T) {
	srv := fakeSSEServer(t)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer tok")
	tr := newSSETransport(srv.URL+"/sse", headers, newBridgeLog("none"))

	if err := tr.connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.close()

	tools := tr.tools()
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	var tool struct {
		Name string `json:"name"`
	}
	json.Unmarshal(tools[0], &tool)
	if tool.Name != "search" {
		t.Errorf("unexpected tool: %s", tools[0])
	}
}

func TestSSECallTool(t *testing.T) {
	srv := fakeSSEServer(t)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer tok")
	tr := newSSETransport(srv.URL+"/sse", headers, newBridgeLog("none"))
	if err := tr.connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.close()

	result, err := tr.callTool(json.RawMessage(`{"name":"search","arguments":{}}`))
	if err != nil {
		t.Fatalf("callTool: %v", err)
	}
	if !json.Valid(result) {
		t.Fatalf("invalid result: %s", result)
	}
	var doc struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	json.Unmarshal(result, &doc)
	if len(doc.Content) != 1 || doc.Content[0].Text != "found" {
		t.Errorf("unexpected result: %s", result)
	}
}

func TestSSECallToolRemoteError(t *testing.T) {
	srv := fakeSSEServer(t)

	tr := newSSETransport(srv.URL+"/sse", http.Header{}, newBridgeLog("none"))
	if err := tr.connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.close()

	// No bearer header: the fake server rejects the call.
	if _, err := tr.callTool(json.RawMessage(`{"name":"search"}`)); err == nil {
		t.Error("expected remote error")
	}
}

func TestSSEMessageURL(t *testing.T) {
	tr := newSSETransport("https://host/api/sse", http.Header{}, newBridgeLog("none"))
	if got := tr.messageURL(); got != "https://host/api/message" {
		t.Errorf("messageURL = %s", got)
	}
}

func TestSSEConnectRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	tr := newSSETransport(srv.URL+"/sse", http.Header{}, newBridgeLog("none"))
	if err := tr.connect(); err == nil {
		t.Error("expected error for non-200 status")
	}
}
