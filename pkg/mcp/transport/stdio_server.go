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
	"context"
	"fmt"
	"io"
	"sync"
)

type lineRead struct {
	data []byte
	err  error
}

// StdioServerTransport is the server side of newline-delimited JSON over
// stdio. It reads requests from r (normally os.Stdin) and writes
// responses to w (normally os.Stdout).
//
// A single persistent goroutine owns the reader for the transport's
// lifetime, so a Receive abandoned by context cancellation neither leaks
// a goroutine nor loses the line it was reading.
type StdioServerTransport struct {
	reader *bufio.Reader
	writer io.Writer

	mu     sync.Mutex // guards writer and closed
	closed bool

	readCh chan lineRead
	once   sync.Once
}

// NewStdioServerTransport wraps r and w as a server transport. The read
// buffer starts at 1MB; bufio grows it for longer lines.
func NewStdioServerTransport(r io.Reader, w io.Writer) *StdioServerTransport {
	return &StdioServerTransport{
		reader: bufio.NewReaderSize(r, 1024*1024),
		writer: w,
		readCh: make(chan lineRead, 1),
	}
}

func (t *StdioServerTransport) startReader() {
	t.once.Do(func() {
		go func() {
			defer close(t.readCh)
			for {
				line, err := t.reader.ReadBytes('\n')
				t.readCh <- lineRead{data: line, err: err}
				if err != nil {
					return
				}
			}
		}()
	})
}

// Send writes one message and its newline under the writer lock.
func (t *StdioServerTransport) Send(_ context.Context, message []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	framed := make([]byte, 0, len(message)+1)
	framed = append(framed, message...)
	framed = append(framed, '\n')
	if _, err := t.writer.Write(framed); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Receive blocks for the next non-empty line. io.EOF is returned
// unchanged so callers can tell a clean host disconnect from a read
// failure.
func (t *StdioServerTransport) Receive(ctx context.Context) ([]byte, error) {
	t.startReader()

	for {
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case result, ok := <-t.readCh:
			if !ok {
				// Reader goroutine exited after delivering its error;
				// later calls see a plain EOF.
				return nil, io.EOF
			}
			if result.err != nil {
				if result.err == io.EOF {
					return nil, io.EOF
				}
				return nil, fmt.Errorf("read message: %w", result.err)
			}
			line := trimLineEnding(result.data)
			if len(line) == 0 {
				continue
			}
			return line, nil
		}
	}
}

// Close marks the transport closed. The underlying reader and writer are
// left open; they are usually the process's own stdio.
func (t *StdioServerTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
