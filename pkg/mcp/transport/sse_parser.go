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
	"io"
	"strings"
)

// SSEParser reads Server-Sent Events from a response body. MCP servers
// answer POSTs with either a plain JSON body or an event stream; this
// parser handles the latter.
type SSEParser struct {
	reader *bufio.Reader
}

// NewSSEParser wraps r for event parsing.
func NewSSEParser(r io.Reader) *SSEParser {
	return &SSEParser{reader: bufio.NewReader(r)}
}

// ParseEvent returns the next event. An event is a run of field lines
// terminated by a blank line:
//
//	id: 3
//	event: message
//	data: {"jsonrpc":"2.0",...}
//
// Multi-line data fields are joined with newlines. A partial event cut
// off by EOF is still returned; a clean EOF yields io.EOF.
func (p *SSEParser) ParseEvent() (*SSEEvent, error) {
	event := &SSEEvent{}
	var dataLines []string

	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				event.Data = []byte(strings.Join(dataLines, "\n"))
				return event, nil
			}
			return nil, err
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		if line == "" {
			if len(dataLines) > 0 {
				event.Data = []byte(strings.Join(dataLines, "\n"))
				return event, nil
			}
			continue
		}

		// Lines starting with a colon are comments.
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "id":
			event.ID = value
		case "data":
			dataLines = append(dataLines, value)
		}
		// The event type is ignored; MCP streams only carry "message".
	}
}

// ParseAll drains the stream and returns every event.
func (p *SSEParser) ParseAll() ([]SSEEvent, error) {
	var events []SSEEvent
	for {
		event, err := p.ParseEvent()
		if err != nil {
			if err == io.EOF {
				return events, nil
			}
			return events, err
		}
		events = append(events, *event)
	}
}
