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

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/teradata-labs/heddle/pkg/workflow"
)

// Memory is an in-process Store used by tests and single-shot CLI runs.
// Every read hands out a clone, so callers can never mutate stored state
// without going through Update.
type Memory struct {
	mu    sync.RWMutex
	items map[string]*workflow.Workflow

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]*workflow.Workflow),
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *Memory) Create(_ context.Context, w *workflow.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[w.ID]; ok {
		return ErrExists
	}
	m.items[w.ID] = w.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, id, userID string) (*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if w.UserID != userID {
		return nil, ErrForbidden
	}
	return w.Clone(), nil
}

// Update serializes edits per workflow id: the per-id mutex linearises
// concurrent read-modify-write cycles, and fn failures leave the stored
// state untouched.
func (m *Memory) Update(ctx context.Context, id, userID string, fn func(*workflow.Workflow) error) (*workflow.Workflow, error) {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	current, err := m.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(current); err != nil {
		return nil, err
	}
	current.Touch()

	m.mu.Lock()
	m.items[id] = current.Clone()
	m.mu.Unlock()
	return current, nil
}

func (m *Memory) List(_ context.Context, userID string, f Filter) ([]*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*workflow.Workflow
	for _, w := range m.items {
		if w.UserID != userID {
			continue
		}
		if !matchesFilter(w, f) {
			continue
		}
		out = append(out, w.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.UpdatedAt.After(out[j].Metadata.UpdatedAt)
	})
	return out, nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) lockFor(id string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	if l, ok := m.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	m.locks[id] = l
	return l
}

// matchesFilter applies the List filter to a workflow. Tag matching is
// any-of.
func matchesFilter(w *workflow.Workflow, f Filter) bool {
	if !f.IncludeDrafts && w.Metadata.IsDraft {
		return false
	}
	if f.Domain != "" && w.Metadata.Domain != f.Domain {
		return false
	}
	if len(f.Tags) > 0 {
		found := false
		for _, want := range f.Tags {
			for _, have := range w.Metadata.Tags {
				if want == have {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

var _ Store = (*Memory)(nil)
