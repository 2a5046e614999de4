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

// Package transport carries MCP messages between peers. Two transports
// are provided: newline-delimited JSON over stdio, for subprocess servers
// and desktop hosts, and streamable HTTP with optional SSE response
// bodies and session tracking.
package transport

import "context"

// Transport moves one JSON-RPC message at a time. Messages are opaque
// byte slices; framing is the transport's concern.
type Transport interface {
	// Send transmits a message.
	Send(ctx context.Context, message []byte) error

	// Receive blocks until the next message arrives, the transport
	// closes, or ctx is done.
	Receive(ctx context.Context) ([]byte, error)

	// Close releases the transport. Blocked Receive calls return an
	// error after Close.
	Close() error
}
