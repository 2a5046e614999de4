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
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSessionTTL is the idle session lifetime used when callers do
// not pick their own.
const DefaultSessionTTL = 30 * time.Minute

// maxRequestBody bounds POST bodies; a workflow graph plus a serialized
// session state fits comfortably under this.
const maxRequestBody = 10 * 1024 * 1024

// MCPHandler processes one JSON-RPC message and returns the serialized
// response, or nil for notifications.
type MCPHandler func(msg []byte) ([]byte, error)

// StreamableHTTPServer is the server side of the MCP streamable HTTP
// transport: a single endpoint accepting POSTed JSON-RPC messages.
// Responses are plain JSON, or a one-event SSE stream when the client
// accepts text/event-stream. Sessions are assigned on initialize via the
// Mcp-Session-Id header and expire after SessionTTL of inactivity.
//
// The transport carries no authentication. Bind it to localhost only;
// WarnIfNotLocalhost checks an address before listening.
type StreamableHTTPServer struct {
	handler    MCPHandler
	logger     *zap.Logger
	sessionTTL time.Duration

	mu       sync.RWMutex
	sessions map[string]*httpSession

	eventSeq    atomic.Uint64
	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

type httpSession struct {
	id           string
	lastActivity time.Time
}

// StreamableHTTPServerConfig configures the server transport.
type StreamableHTTPServerConfig struct {
	// Handler processes each message. Required.
	Handler MCPHandler

	Logger *zap.Logger

	// SessionTTL expires idle sessions. Zero disables expiry.
	SessionTTL time.Duration
}

// NewStreamableHTTPServer builds the http.Handler for an MCP endpoint.
func NewStreamableHTTPServer(config StreamableHTTPServerConfig) (*StreamableHTTPServer, error) {
	if config.Handler == nil {
		return nil, fmt.Errorf("streamable http server requires a handler")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	ttl := config.SessionTTL
	if ttl < 0 {
		ttl = 0
	}

	s := &StreamableHTTPServer{
		handler:     config.Handler,
		logger:      config.Logger,
		sessionTTL:  ttl,
		sessions:    make(map[string]*httpSession),
		stopCleanup: make(chan struct{}),
	}
	if ttl > 0 {
		s.startCleanup()
	}
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *StreamableHTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		// No server-initiated GET streams; per spec a plain 405 tells
		// clients not to open one.
		w.Header().Set("Allow", "POST, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *StreamableHTTPServer) handlePost(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, _ := mime.ParseMediaType(ct)
		if mediaType != "application/json" {
			http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.logger.Error("read request body", zap.Error(err))
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "empty request body", http.StatusBadRequest)
		return
	}

	isInit := isInitializeRequest(body)

	// A presented session id must belong to a live session; expired ids
	// get a 404 so the client re-initializes.
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID != "" {
		s.mu.Lock()
		sess, exists := s.sessions[sessionID]
		if exists {
			sess.lastActivity = time.Now()
		}
		s.mu.Unlock()
		if !exists {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
	}

	resp, err := s.handler(body)
	if err != nil {
		s.logger.Error("message handler failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if isInit && sessionID == "" {
		newID := uuid.New().String()
		s.mu.Lock()
		s.sessions[newID] = &httpSession{id: newID, lastActivity: time.Now()}
		s.mu.Unlock()
		w.Header().Set("Mcp-Session-Id", newID)
		s.logger.Info("session created", zap.String("session_id", newID))
	}

	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if acceptsEventStream(r) {
		s.writeEventStream(w, resp)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

func (s *StreamableHTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "Mcp-Session-Id header required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	_, exists := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !exists {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	s.logger.Info("session terminated", zap.String("session_id", sessionID))
	w.WriteHeader(http.StatusOK)
}

// writeEventStream sends the response as a single SSE event. Each event
// gets a server-unique id so clients can track their position.
func (s *StreamableHTTPServer) writeEventStream(w http.ResponseWriter, resp []byte) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	id := s.eventSeq.Add(1)
	fmt.Fprintf(w, "id: %d\nevent: message\ndata: %s\n\n", id, resp)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func acceptsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

func isInitializeRequest(body []byte) bool {
	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.Method == "initialize"
}

// SessionCount reports live sessions, for tests and health output.
func (s *StreamableHTTPServer) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the session sweeper. Safe to call more than once.
func (s *StreamableHTTPServer) Close() {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
	})
}

// startCleanup sweeps idle sessions at half the TTL, no faster than once
// per second.
func (s *StreamableHTTPServer) startCleanup() {
	interval := s.sessionTTL / 2
	if interval < time.Second {
		interval = time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCleanup:
				return
			case now := <-ticker.C:
				s.expireSessions(now)
			}
		}
	}()
}

func (s *StreamableHTTPServer) expireSessions(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastActivity) > s.sessionTTL {
			delete(s.sessions, id)
			s.logger.Info("session expired", zap.String("session_id", id))
		}
	}
}

// WarnIfNotLocalhost logs when addr would expose the unauthenticated MCP
// endpoint beyond the local machine.
func WarnIfNotLocalhost(logger *zap.Logger, addr string) {
	if logger == nil {
		return
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = strings.Trim(addr, "[]")
	}

	switch host {
	case "127.0.0.1", "::1", "localhost":
		return
	case "", "0.0.0.0", "::":
		logger.Warn("mcp http endpoint binding to all interfaces without authentication",
			zap.String("addr", addr),
			zap.String("recommendation", "bind to 127.0.0.1"),
		)
	default:
		logger.Warn("mcp http endpoint binding to non-localhost address without authentication",
			zap.String("addr", addr),
			zap.String("recommendation", "bind to 127.0.0.1"),
		)
	}
}
