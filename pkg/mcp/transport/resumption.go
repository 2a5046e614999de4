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
	"container/ring"
	"sync"
)

// SSEEvent is one parsed Server-Sent Event. The ID, when the server
// assigns one, keys stream resumption.
type SSEEvent struct {
	ID   string
	Data []byte
}

// StreamResumption buffers recently seen events so a reconnecting stream
// can be replayed from the last acknowledged event id. Event ids are
// unique within a session, so a single buffer covers all streams.
type StreamResumption struct {
	mu          sync.RWMutex
	lastEventID string
	events      *ring.Ring
	size        int
}

// NewStreamResumption builds a buffer holding the most recent size
// events. Sizes below one fall back to 100.
func NewStreamResumption(size int) *StreamResumption {
	if size <= 0 {
		size = 100
	}
	return &StreamResumption{
		events: ring.New(size),
		size:   size,
	}
}

// AddEvent records an event and advances the last seen id.
func (s *StreamResumption) AddEvent(event SSEEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events.Value = event
	s.events = s.events.Next()
	s.lastEventID = event.ID
}

// LastEventID returns the most recently recorded event id.
func (s *StreamResumption) LastEventID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastEventID
}

// EventsAfter returns the buffered events recorded after the given id,
// oldest first. It returns nil when the id is empty or has already been
// evicted from the buffer.
func (s *StreamResumption) EventsAfter(afterID string) []SSEEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if afterID == "" {
		return nil
	}

	var events []SSEEvent
	found := false
	s.events.Do(func(v any) {
		event, ok := v.(SSEEvent)
		if !ok {
			return
		}
		if found {
			events = append(events, event)
		} else if event.ID == afterID {
			found = true
		}
	})

	if !found {
		return nil
	}
	return events
}

// Clear drops all buffered events, for session teardown.
func (s *StreamResumption) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEventID = ""
	s.events = ring.New(s.size)
}
