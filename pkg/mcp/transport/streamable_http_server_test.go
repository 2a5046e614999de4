// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// registryHandler answers initialize and echoes an empty result for any
// other request; notifications return nil.
func registryHandler(msg []byte) ([]byte, error) {
	var req struct {
		ID     *json.RawMessage `json:"id"`
		Method string           `json:"method"`
	}
	if err := json.Unmarshal(msg, &req); err != nil {
		return nil, err
	}
	if req.ID == nil {
		return nil, nil
	}

	var result any
	switch req.Method {
	case "initialize":
		result = map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "heddle-mcp", "version": "test"},
		}
	default:
		result = map[string]any{}
	}
	raw, _ := json.Marshal(result)
	return json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      req.ID,
		"result":  json.RawMessage(raw),
	})
}

func newHTTPServer(t *testing.T, ttl time.Duration) *StreamableHTTPServer {
	t.Helper()
	srv, err := NewStreamableHTTPServer(StreamableHTTPServerConfig{
		Handler:    registryHandler,
		Logger:     zaptest.NewLogger(t),
		SessionTTL: ttl,
	})
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func postMessage(t *testing.T, url, body, sessionID string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func initSession(t *testing.T, url string) string {
	t.Helper()
	resp := postMessage(t, url, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return resp.Header.Get("Mcp-Session-Id")
}

func TestStreamableHTTPServer_Initialize(t *testing.T) {
	srv := newHTTPServer(t, 0)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp := postMessage(t, ts.URL, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Mcp-Session-Id"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "protocolVersion")
	assert.Equal(t, 1, srv.SessionCount())
}

func TestStreamableHTTPServer_SSEResponse(t *testing.T) {
	srv := newHTTPServer(t, 0)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL,
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	events, err := NewSSEParser(bytes.NewReader(body)).ParseAll()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.Contains(t, string(events[0].Data), "protocolVersion")
}

func TestStreamableHTTPServer_RequestWithSession(t *testing.T) {
	srv := newHTTPServer(t, 0)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	sessionID := initSession(t, ts.URL)

	resp := postMessage(t, ts.URL, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, sessionID)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStreamableHTTPServer_NotificationAccepted(t *testing.T) {
	srv := newHTTPServer(t, 0)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp := postMessage(t, ts.URL, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestStreamableHTTPServer_UnknownSession(t *testing.T) {
	srv := newHTTPServer(t, 0)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp := postMessage(t, ts.URL, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, "expired-session")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamableHTTPServer_DeleteSession(t *testing.T) {
	srv := newHTTPServer(t, 0)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	sessionID := initSession(t, ts.URL)
	require.Equal(t, 1, srv.SessionCount())

	req, err := http.NewRequest(http.MethodDelete, ts.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Mcp-Session-Id", sessionID)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, srv.SessionCount())
}

func TestStreamableHTTPServer_DeleteErrors(t *testing.T) {
	srv := newHTTPServer(t, 0)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	// Unknown session.
	req, err := http.NewRequest(http.MethodDelete, ts.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Mcp-Session-Id", "never-existed")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Missing header.
	req, err = http.NewRequest(http.MethodDelete, ts.URL, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStreamableHTTPServer_MethodNotAllowed(t *testing.T) {
	srv := newHTTPServer(t, 0)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	for _, method := range []string{http.MethodGet, http.MethodPut} {
		req, err := http.NewRequest(method, ts.URL, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, method)
		assert.Equal(t, "POST, DELETE", resp.Header.Get("Allow"))
	}
}

func TestStreamableHTTPServer_BadRequests(t *testing.T) {
	srv := newHTTPServer(t, 0)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Post(ts.URL, "application/json", strings.NewReader(""))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "empty body")

	resp, err = http.Post(ts.URL, "text/plain", strings.NewReader("not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode, "wrong content type")
}

func TestNewStreamableHTTPServer_RequiresHandler(t *testing.T) {
	_, err := NewStreamableHTTPServer(StreamableHTTPServerConfig{})
	assert.Error(t, err)
}

func TestStreamableHTTPServer_ConcurrentRequests(t *testing.T) {
	srv := newHTTPServer(t, 10*time.Second)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	sessionID := initSession(t, ts.URL)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := postMessage(t, ts.URL, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, sessionID)
			resp.Body.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, srv.SessionCount())
}

func TestStreamableHTTPServer_SessionTTLExpiry(t *testing.T) {
	srv := newHTTPServer(t, 2*time.Second)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	sessionID := initSession(t, ts.URL)
	require.NotEmpty(t, sessionID)
	assert.Equal(t, 1, srv.SessionCount())

	assert.Eventually(t, func() bool {
		return srv.SessionCount() == 0
	}, 5*time.Second, 200*time.Millisecond, "idle session should expire")
}

func TestStreamableHTTPServer_ActivityRenewsSession(t *testing.T) {
	srv := newHTTPServer(t, 3*time.Second)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	sessionID := initSession(t, ts.URL)

	// Touch the session past its original TTL; activity must keep it
	// alive.
	for i := 0; i < 5; i++ {
		time.Sleep(time.Second)
		resp := postMessage(t, ts.URL, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, sessionID)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, "iteration %d", i)
	}

	assert.Equal(t, 1, srv.SessionCount())
}

func TestStreamableHTTPServer_CloseStopsSweeper(t *testing.T) {
	srv := newHTTPServer(t, 2*time.Second)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	initSession(t, ts.URL)
	assert.Equal(t, 1, srv.SessionCount())

	srv.Close()
	srv.Close() // idempotent

	time.Sleep(3 * time.Second)
	assert.Equal(t, 1, srv.SessionCount(), "closed server must not sweep sessions")
}

func TestStreamableHTTPServer_ZeroTTLDisablesSweeper(t *testing.T) {
	srv := newHTTPServer(t, 0)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	initSession(t, ts.URL)
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 1, srv.SessionCount())
}

func TestStreamableHTTPServer_ExpireSessionsDirect(t *testing.T) {
	srv := newHTTPServer(t, 5*time.Minute)

	now := time.Now()
	srv.mu.Lock()
	srv.sessions["fresh"] = &httpSession{id: "fresh", lastActivity: now}
	srv.sessions["stale"] = &httpSession{id: "stale", lastActivity: now.Add(-10 * time.Minute)}
	srv.sessions["recent"] = &httpSession{id: "recent", lastActivity: now.Add(-4 * time.Minute)}
	srv.mu.Unlock()

	srv.expireSessions(now)

	srv.mu.RLock()
	_, hasFresh := srv.sessions["fresh"]
	_, hasStale := srv.sessions["stale"]
	_, hasRecent := srv.sessions["recent"]
	srv.mu.RUnlock()

	assert.True(t, hasFresh)
	assert.False(t, hasStale)
	assert.True(t, hasRecent)
}

func TestDefaultSessionTTL(t *testing.T) {
	assert.Equal(t, 30*time.Minute, DefaultSessionTTL)
}

func TestWarnIfNotLocalhost(t *testing.T) {
	tests := []struct {
		name       string
		addr       string
		expectWarn bool
	}{
		{"loopback with port", "127.0.0.1:8700", false},
		{"loopback no port", "127.0.0.1", false},
		{"ipv6 loopback", "[::1]:8700", false},
		{"localhost name", "localhost:8700", false},
		{"all interfaces", "0.0.0.0:8700", true},
		{"empty host", ":8700", true},
		{"ipv6 all", "[::]:8700", true},
		{"lan address", "192.168.1.100:8700", true},
		{"public address", "10.0.0.1:8700", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			WarnIfNotLocalhost(zap.New(core), tt.addr)

			if tt.expectWarn {
				assert.GreaterOrEqual(t, logs.Len(), 1, "expected warning for %s", tt.addr)
			} else {
				assert.Zero(t, logs.Len(), "unexpected warning for %s", tt.addr)
			}
		})
	}
}

func TestWarnIfNotLocalhost_NilLogger(t *testing.T) {
	WarnIfNotLocalhost(nil, "0.0.0.0:8700")
}
