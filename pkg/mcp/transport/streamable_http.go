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
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrSessionExpired reports that the server no longer knows our session
// (HTTP 404). Callers should re-initialize before retrying.
var ErrSessionExpired = errors.New("session expired")

// StreamableHTTPTransport is the client side of the MCP streamable HTTP
// transport. Every message goes out as a POST; the server answers each
// POST with either a JSON body or a short-lived SSE stream, and both are
// funneled into a single ordered message channel for Receive.
type StreamableHTTPTransport struct {
	endpoint string
	headers  map[string]string
	client   *http.Client

	sessionMgr *SessionManager
	resumption *StreamResumption

	messages chan []byte
	errors   chan error

	mu      sync.Mutex
	closed  bool
	started bool
	logger  *zap.Logger

	activeStreams sync.WaitGroup
	streamCtx     context.Context
	streamCancel  context.CancelFunc

	enableSessions   bool
	enableResumption bool
}

// StreamableHTTPConfig configures the client transport.
type StreamableHTTPConfig struct {
	// Endpoint is the server's MCP URL, e.g. http://127.0.0.1:8700/mcp.
	Endpoint string

	// Headers are added to every request, for auth tokens and the like.
	Headers map[string]string

	// EnableSessions tracks the server's Mcp-Session-Id header.
	EnableSessions bool

	// EnableResumption buffers SSE event ids for stream replay.
	EnableResumption bool

	Logger *zap.Logger
}

// NewStreamableHTTPTransport builds a client transport for the endpoint.
func NewStreamableHTTPTransport(config StreamableHTTPConfig) (*StreamableHTTPTransport, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("streamable http transport requires an endpoint")
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	streamCtx, streamCancel := context.WithCancel(context.Background())

	return &StreamableHTTPTransport{
		endpoint:         config.Endpoint,
		headers:          config.Headers,
		client:           &http.Client{},
		sessionMgr:       NewSessionManager(),
		resumption:       NewStreamResumption(100),
		messages:         make(chan []byte, 100),
		errors:           make(chan error, 1),
		logger:           logger,
		streamCtx:        streamCtx,
		streamCancel:     streamCancel,
		enableSessions:   config.EnableSessions,
		enableResumption: config.EnableResumption,
	}, nil
}

// Send POSTs one message and routes the response body, JSON or SSE, into
// the message channel. Notification acknowledgments (202 with an empty
// body) produce nothing.
func (t *StreamableHTTPTransport) Send(ctx context.Context, message []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	first := !t.started
	t.started = true
	t.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(message))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if sessionID := t.sessionMgr.SessionID(); sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", t.endpoint, err)
	}
	defer resp.Body.Close()

	if err := t.checkStatus(resp); err != nil {
		return err
	}

	// The server assigns the session on the first exchange.
	if first && t.enableSessions {
		if sessionID := resp.Header.Get("Mcp-Session-Id"); sessionID != "" {
			if err := t.sessionMgr.SetSessionID(sessionID); err != nil {
				t.logger.Warn("rejected session id from server", zap.Error(err))
			} else {
				t.logger.Debug("session established", zap.String("session_id", sessionID))
			}
		}
	}

	mediaType := resp.Header.Get("Content-Type")
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}

	switch mediaType {
	case "text/event-stream":
		// Each POST's stream is short-lived, so the whole body is read
		// here and parsed off the request path.
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read event stream: %w", err)
		}
		t.consumeStream(ctx, body)
		return nil

	case "application/json":
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if len(body) == 0 {
			return nil
		}
		select {
		case t.messages <- body:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	default:
		if resp.StatusCode == http.StatusAccepted {
			return nil
		}
		return fmt.Errorf("unexpected content type %q", mediaType)
	}
}

// Receive returns the next message produced by any in-flight response
// stream.
func (t *StreamableHTTPTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-t.errors:
		return nil, err
	case msg := <-t.messages:
		return msg, nil
	}
}

// Close cancels in-flight streams and terminates the server session.
func (t *StreamableHTTPTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.streamCancel()
	t.activeStreams.Wait()

	if t.enableSessions && t.sessionMgr.HasSession() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.terminateSession(ctx); err != nil {
			t.logger.Debug("session termination failed", zap.Error(err))
		}
	}

	close(t.messages)
	close(t.errors)
	return nil
}

// consumeStream parses a fully buffered SSE body in the background and
// feeds its events into the message channel in order.
func (t *StreamableHTTPTransport) consumeStream(ctx context.Context, body []byte) {
	t.activeStreams.Add(1)
	go func() {
		defer t.activeStreams.Done()

		parser := NewSSEParser(bytes.NewReader(body))
		for {
			event, err := parser.ParseEvent()
			if err != nil {
				if err != io.EOF {
					select {
					case t.errors <- fmt.Errorf("parse event stream: %w", err):
					default:
					}
				}
				return
			}
			if len(event.Data) == 0 {
				continue
			}

			if t.enableResumption && event.ID != "" {
				t.resumption.AddEvent(*event)
			}

			select {
			case t.messages <- event.Data:
			case <-t.streamCtx.Done():
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// checkStatus maps HTTP status codes onto transport errors. A 404 means
// the server dropped our session.
func (t *StreamableHTTPTransport) checkStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		return nil

	case http.StatusBadRequest:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bad request: %s", body)

	case http.StatusNotFound:
		t.logger.Warn("server session expired, clearing local session")
		t.sessionMgr.ClearSession()
		if t.enableResumption {
			t.resumption.Clear()
		}
		return ErrSessionExpired

	case http.StatusMethodNotAllowed:
		return fmt.Errorf("method not allowed by server")

	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("http %d: %s", resp.StatusCode, body)
	}
}

// terminateSession DELETEs the session. Servers that do not support
// client-initiated termination answer 405, which is fine.
func (t *StreamableHTTPTransport) terminateSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, t.endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Mcp-Session-Id", t.sessionMgr.SessionID())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusMethodNotAllowed:
		return nil
	default:
		return fmt.Errorf("terminate session: http %d", resp.StatusCode)
	}
}

// SessionID returns the server-assigned session id, if any.
func (t *StreamableHTTPTransport) SessionID() string {
	return t.sessionMgr.SessionID()
}
