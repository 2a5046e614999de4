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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrClosed is returned by Send and Receive after the transport closes.
var ErrClosed = errors.New("transport closed")

// StdioTransport runs an MCP server as a subprocess and exchanges
// newline-delimited JSON over its stdin and stdout. Stderr is drained
// and logged so the subprocess never blocks on a full pipe.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	readCh chan []byte
	errCh  chan error
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	logger *zap.Logger
}

// StdioConfig describes the server subprocess to spawn.
type StdioConfig struct {
	Command string
	Args    []string
	Env     map[string]string
	Dir     string
	Logger  *zap.Logger
}

// NewStdioTransport spawns the server process and wires its pipes. The
// returned transport owns the process; Close shuts it down.
func NewStdioTransport(config StdioConfig) (*StdioTransport, error) {
	if config.Command == "" {
		return nil, fmt.Errorf("stdio transport requires a command")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	// #nosec G204 -- spawns the MCP server binary named in trusted config
	cmd := exec.Command(config.Command, config.Args...)
	if config.Dir != "" {
		cmd.Dir = config.Dir
	}
	cmd.Env = os.Environ()
	for k, v := range config.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("start %s: %w", config.Command, err)
	}

	t := &StdioTransport{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		readCh: make(chan []byte, 1),
		errCh:  make(chan error, 1),
		done:   make(chan struct{}),
		logger: config.Logger,
	}

	go t.readLoop()
	go t.drainStderr()

	config.Logger.Info("mcp server started",
		zap.String("command", config.Command),
		zap.Strings("args", config.Args),
		zap.Int("pid", cmd.Process.Pid),
	)
	return t, nil
}

// readLoop owns the stdout reader. A single persistent reader keeps
// messages from being lost when a Receive is abandoned mid-read by a
// cancelled context. bufio.Reader has no line length cap, so large tool
// results pass through intact.
func (s *StdioTransport) readLoop() {
	reader := bufio.NewReader(s.stdout)
	for {
		data, err := reader.ReadBytes('\n')
		if err != nil {
			select {
			case s.errCh <- err:
			case <-s.done:
			}
			return
		}

		data = trimLineEnding(data)
		if len(data) == 0 {
			continue
		}

		select {
		case s.readCh <- data:
		case <-s.done:
			return
		}
	}
}

// drainStderr keeps the subprocess from blocking on a full stderr pipe
// and surfaces its diagnostics at debug level.
func (s *StdioTransport) drainStderr() {
	reader := bufio.NewReader(s.stderr)
	for {
		line, err := reader.ReadBytes('\n')
		if trimmed := bytes.TrimRight(line, "\r\n"); len(trimmed) > 0 {
			s.logger.Debug("mcp server stderr", zap.ByteString("line", trimmed))
		}
		if err != nil {
			return
		}
	}
}

// Send writes one message to the server's stdin. The trailing newline is
// part of the same write so concurrent senders never interleave frames.
func (s *StdioTransport) Send(ctx context.Context, message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	framed := make([]byte, 0, len(message)+1)
	framed = append(framed, message...)
	framed = append(framed, '\n')
	if _, err := s.stdin.Write(framed); err != nil {
		return fmt.Errorf("write to server stdin: %w", err)
	}
	return nil
}

// Receive returns the next message from the server's stdout.
func (s *StdioTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrClosed
	case data := <-s.readCh:
		return data, nil
	case err := <-s.errCh:
		return nil, err
	}
}

// Close shuts the subprocess down: stdin is closed to signal exit, and
// the process is killed if it has not exited within five seconds.
func (s *StdioTransport) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.logger.Info("stopping mcp server", zap.Int("pid", s.cmd.Process.Pid))
	s.stdin.Close()

	waited := make(chan error, 1)
	go func() { waited <- s.cmd.Wait() }()

	select {
	case err := <-waited:
		if err != nil {
			s.logger.Warn("mcp server exited with error", zap.Error(err))
		}
	case <-time.After(5 * time.Second):
		s.logger.Warn("mcp server did not exit, killing process")
		if err := s.cmd.Process.Kill(); err != nil {
			s.logger.Error("kill mcp server", zap.Error(err))
		}
		<-waited
	}

	s.stdout.Close()
	s.stderr.Close()
	return nil
}

// trimLineEnding strips the trailing newline and any carriage return
// left by Windows peers.
func trimLineEnding(data []byte) []byte {
	if n := len(data); n > 0 && data[n-1] == '\n' {
		data = data[:n-1]
	}
	if n := len(data); n > 0 && data[n-1] == '\r' {
		data = data[:n-1]
	}
	return data
}
