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

// Package client implements the MCP client side: the initialize handshake,
// request dispatch over a pluggable transport, and typed wrappers for the
// tools, resources, and prompts surfaces.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teradata-labs/heddle/pkg/mcp/protocol"
	"github.com/teradata-labs/heddle/pkg/mcp/transport"
	"go.uber.org/zap"
)

// DefaultRequestTimeout bounds a request when the caller's context carries
// no deadline of its own.
const DefaultRequestTimeout = 30 * time.Second

// Client is an MCP client connection to a single server. It owns the
// transport, correlates responses to in-flight requests by id, and delivers
// server notifications through Notifications.
type Client struct {
	transport transport.Transport
	logger    *zap.Logger

	initialized        bool
	initializing       bool
	protocolVersion    string
	serverInfo         protocol.Implementation
	serverCapabilities protocol.ServerCapabilities

	nextID    int64
	pending   map[string]chan *protocol.Response
	pendingMu sync.RWMutex

	tools   map[string]protocol.Tool
	toolsMu sync.RWMutex

	notifications chan Notification

	requestTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// Config configures the MCP client.
type Config struct {
	Transport transport.Transport
	Logger    *zap.Logger

	// RequestTimeout bounds each request when the caller's context has no
	// deadline. Zero means DefaultRequestTimeout.
	RequestTimeout time.Duration
}

// Notification is a server notification such as
// notifications/resources/list_changed.
type Notification struct {
	Method string
	Params json.RawMessage
}

// NewClient creates a client over the given transport and starts its
// receive loop. Call Initialize before any other method.
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}

	c := &Client{
		transport:      config.Transport,
		logger:         config.Logger,
		requestTimeout: config.RequestTimeout,
		ctx:            ctx,
		cancel:         cancel,
		pending:        make(map[string]chan *protocol.Response),
		tools:          make(map[string]protocol.Tool),
		notifications:  make(chan Notification, 100),
	}

	c.wg.Add(1)
	go c.receiveLoop()

	return c
}

// Initialize performs the MCP handshake: initialize request, protocol
// version check, then the notifications/initialized notification.
func (c *Client) Initialize(ctx context.Context, clientInfo protocol.Implementation) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return errors.New("already initialized")
	}
	if c.initializing {
		c.mu.Unlock()
		return errors.New("initialization already in progress")
	}
	c.initializing = true
	c.mu.Unlock()

	// Clear the in-progress flag on failure so a retry is possible.
	defer func() {
		c.mu.Lock()
		if !c.initialized {
			c.initializing = false
		}
		c.mu.Unlock()
	}()

	params := protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    protocol.ClientCapabilities{},
		ClientInfo:      clientInfo,
	}

	req, err := protocol.NewRequest(c.nextRequestID(), "initialize", params)
	if err != nil {
		return err
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return fmt.Errorf("parse initialize result: %w", err)
	}

	if result.ProtocolVersion != protocol.ProtocolVersion {
		return fmt.Errorf("protocol version mismatch: client=%s server=%s",
			protocol.ProtocolVersion, result.ProtocolVersion)
	}

	c.mu.Lock()
	c.initialized = true
	c.protocolVersion = result.ProtocolVersion
	c.serverInfo = result.ServerInfo
	c.serverCapabilities = result.Capabilities
	c.mu.Unlock()

	c.logger.Info("mcp client initialized",
		zap.String("server", result.ServerInfo.Name),
		zap.String("version", result.ServerInfo.Version),
		zap.Bool("tools", result.Capabilities.Tools != nil),
		zap.Bool("resources", result.Capabilities.Resources != nil),
		zap.Bool("prompts", result.Capabilities.Prompts != nil),
	)

	// The initialized notification completes the handshake.
	note, err := protocol.NewNotification("notifications/initialized", nil)
	if err != nil {
		return err
	}
	noteJSON, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal initialized notification: %w", err)
	}
	if err := c.transport.Send(ctx, noteJSON); err != nil {
		return fmt.Errorf("send initialized notification: %w", err)
	}

	return nil
}

// Ping checks connection health.
func (c *Client) Ping(ctx context.Context) error {
	req, err := protocol.NewRequest(c.nextRequestID(), "ping", struct{}{})
	if err != nil {
		return err
	}
	_, err = c.sendRequest(ctx, req)
	return err
}

// ServerInfo returns the server implementation reported at initialize.
func (c *Client) ServerInfo() protocol.Implementation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// ServerCapabilities returns the capabilities reported at initialize.
func (c *Client) ServerCapabilities() protocol.ServerCapabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverCapabilities
}

// IsInitialized reports whether the handshake has completed.
func (c *Client) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// Notifications returns the stream of server notifications. The channel is
// closed when the client closes; notifications are dropped if the consumer
// falls more than the buffer behind.
func (c *Client) Notifications() <-chan Notification {
	return c.notifications
}

// Close shuts down the receive loop and the transport. Safe to call twice.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()

	if err := c.transport.Close(); err != nil {
		c.logger.Error("failed to close transport", zap.Error(err))
	}

	c.wg.Wait()
	close(c.notifications)

	c.logger.Debug("mcp client closed")
	return nil
}

// sendRequest sends a request and waits for the matching response. When the
// caller's context has no deadline the configured request timeout applies.
func (c *Client) sendRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if err := protocol.ValidateRequest(req); err != nil {
		return nil, err
	}
	if req.ID == nil {
		req.ID = c.nextRequestID()
	}

	if _, ok := ctx.Deadline(); !ok && c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	respChan := make(chan *protocol.Response, 1)
	idStr := req.ID.String()

	c.pendingMu.Lock()
	c.pending[idStr] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, idStr)
		c.pendingMu.Unlock()
	}()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Debug("sending request",
		zap.String("method", req.Method),
		zap.String("id", idStr))

	if err := c.transport.Send(ctx, reqJSON); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, errors.New("client closed")
	case resp := <-respChan:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp, nil
	}
}

// receiveLoop reads messages from the transport and routes them: responses
// to their pending request, notifications to the notification channel, and
// server-initiated requests to handleServerRequest.
func (c *Client) receiveLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		data, err := c.transport.Receive(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, transport.ErrClosed) {
				c.logger.Debug("receive loop shutting down", zap.Error(err))
				return
			}
			c.logger.Error("failed to receive message", zap.Error(err))
			continue
		}
		if len(data) == 0 {
			continue
		}

		// A method field marks a request or notification; everything
		// else with an id is a response.
		var env struct {
			ID     *protocol.RequestID `json:"id"`
			Method string              `json:"method"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("received malformed message", zap.ByteString("data", data))
			continue
		}

		switch {
		case env.Method == "" && env.ID != nil:
			var resp protocol.Response
			if err := json.Unmarshal(data, &resp); err != nil {
				c.logger.Warn("received malformed response", zap.ByteString("data", data))
				continue
			}
			c.handleResponse(&resp)
		case env.Method != "" && env.ID == nil:
			c.handleNotification(env.Method, data)
		case env.Method != "":
			var req protocol.Request
			if err := json.Unmarshal(data, &req); err != nil {
				c.logger.Warn("received malformed request", zap.ByteString("data", data))
				continue
			}
			c.handleServerRequest(&req)
		default:
			c.logger.Warn("received unroutable message", zap.ByteString("data", data))
		}
	}
}

// handleResponse delivers a response to the pending request with the same id.
func (c *Client) handleResponse(resp *protocol.Response) {
	idStr := resp.ID.String()

	c.pendingMu.RLock()
	respChan, exists := c.pending[idStr]
	c.pendingMu.RUnlock()

	if !exists {
		c.logger.Warn("response for unknown request", zap.String("id", idStr))
		return
	}

	select {
	case respChan <- resp:
	default:
		c.logger.Warn("response channel full", zap.String("id", idStr))
	}
}

// handleNotification queues a server notification, dropping it when the
// consumer has fallen behind.
func (c *Client) handleNotification(method string, data []byte) {
	var note struct {
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &note); err != nil {
		c.logger.Warn("received malformed notification", zap.String("method", method))
		return
	}

	select {
	case c.notifications <- Notification{Method: method, Params: note.Params}:
	default:
		c.logger.Warn("notification dropped, consumer behind", zap.String("method", method))
	}
}

// handleServerRequest answers requests initiated by the server. Only ping
// is supported; anything else gets a method-not-found error.
func (c *Client) handleServerRequest(req *protocol.Request) {
	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()

	var resp *protocol.Response
	switch req.Method {
	case "ping":
		var err error
		resp, err = protocol.NewResponse(req.ID, struct{}{})
		if err != nil {
			c.logger.Error("failed to build ping response", zap.Error(err))
			return
		}
	default:
		resp = protocol.NewErrorResponse(req.ID,
			protocol.NewError(protocol.MethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil))
	}

	respJSON, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("failed to marshal response", zap.String("method", req.Method), zap.Error(err))
		return
	}
	if err := c.transport.Send(ctx, respJSON); err != nil {
		c.logger.Error("failed to send response", zap.Error(err))
	}
}

// nextRequestID returns a fresh numeric request id.
func (c *Client) nextRequestID() *protocol.RequestID {
	return protocol.NewNumberID(atomic.AddInt64(&c.nextID, 1))
}
