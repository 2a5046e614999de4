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

package prompts

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// mockRegistry counts lookups against a fixed prompt set.
type mockRegistry struct {
	mu          sync.Mutex
	getCalls    int
	metaCalls   int
	reloadCalls int
	prompts     map[string]map[string]string // key -> variant -> content
	metadata    map[string]*PromptMetadata
	updates     chan PromptUpdate
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		prompts:  make(map[string]map[string]string),
		metadata: make(map[string]*PromptMetadata),
		updates:  make(chan PromptUpdate, 4),
	}
}

func (m *mockRegistry) add(key, variant, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prompts[key] == nil {
		m.prompts[key] = make(map[string]string)
	}
	m.prompts[key][variant] = content
	m.metadata[key] = &PromptMetadata{Key: key, Version: "1.0.0"}
}

func (m *mockRegistry) Get(ctx context.Context, key string, vars map[string]interface{}) (string, error) {
	return m.GetWithVariant(ctx, key, "default", vars)
}

func (m *mockRegistry) GetWithVariant(ctx context.Context, key string, variant string, vars map[string]interface{}) (string, error) {
	m.mu.Lock()
	m.getCalls++
	variants, ok := m.prompts[key]
	var content string
	var haveVariant bool
	if ok {
		content, haveVariant = variants[variant]
	}
	m.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("prompt not found: %s", key)
	}
	if !haveVariant {
		return "", fmt.Errorf("variant not found: %s (key: %s)", variant, key)
	}
	return Interpolate(content, vars), nil
}

func (m *mockRegistry) GetMetadata(ctx context.Context, key string) (*PromptMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metaCalls++

	metadata, ok := m.metadata[key]
	if !ok {
		return nil, fmt.Errorf("prompt not found: %s", key)
	}
	c := *metadata
	return &c, nil
}

func (m *mockRegistry) List(ctx context.Context, filters map[string]string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.prompts {
		keys = append(keys, key)
	}
	return keys, nil
}

func (m *mockRegistry) Reload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloadCalls++
	return nil
}

func (m *mockRegistry) Watch(ctx context.Context) (<-chan PromptUpdate, error) {
	return m.updates, nil
}

func (m *mockRegistry) calls() (gets, metas, reloads int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls, m.metaCalls, m.reloadCalls
}

func TestCachedRegistry_CacheHit(t *testing.T) {
	mock := newMockRegistry()
	mock.add("orchestrator.system", "default", "base prompt")
	cached := NewCachedRegistry(mock, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := cached.Get(ctx, "orchestrator.system", nil)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if got != "base prompt" {
			t.Errorf("Get() = %q", got)
		}
	}

	if gets, _, _ := mock.calls(); gets != 1 {
		t.Errorf("underlying gets = %d, want 1", gets)
	}
	hits, misses := cached.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("stats = %d hits / %d misses, want 2/1", hits, misses)
	}
}

func TestCachedRegistry_TTLExpiration(t *testing.T) {
	mock := newMockRegistry()
	mock.add("orchestrator.system", "default", "base prompt")
	cached := NewCachedRegistry(mock, 10*time.Millisecond)
	ctx := context.Background()

	if _, err := cached.Get(ctx, "orchestrator.system", nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := cached.Get(ctx, "orchestrator.system", nil); err != nil {
		t.Fatal(err)
	}

	if gets, _, _ := mock.calls(); gets != 2 {
		t.Errorf("underlying gets = %d, want 2 after expiry", gets)
	}
}

func TestCachedRegistry_VariantsCachedSeparately(t *testing.T) {
	mock := newMockRegistry()
	mock.add("orchestrator.frame", "success", "all good")
	mock.add("orchestrator.frame", "failure", "went wrong")
	cached := NewCachedRegistry(mock, time.Minute)
	ctx := context.Background()

	a, err := cached.GetWithVariant(ctx, "orchestrator.frame", "success", nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := cached.GetWithVariant(ctx, "orchestrator.frame", "failure", nil)
	if err != nil {
		t.Fatal(err)
	}
	if a != "all good" || b != "went wrong" {
		t.Errorf("variants = %q / %q", a, b)
	}

	// Both again, now from cache.
	if _, err := cached.GetWithVariant(ctx, "orchestrator.frame", "success", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.GetWithVariant(ctx, "orchestrator.frame", "failure", nil); err != nil {
		t.Fatal(err)
	}

	if gets, _, _ := mock.calls(); gets != 2 {
		t.Errorf("underlying gets = %d, want 2", gets)
	}
}

func TestCachedRegistry_InterpolatesPerCall(t *testing.T) {
	mock := newMockRegistry()
	mock.add("orchestrator.session_note", "default", "session {{.session_id}}")
	cached := NewCachedRegistry(mock, time.Minute)
	ctx := context.Background()

	a, err := cached.Get(ctx, "orchestrator.session_note", map[string]interface{}{"session_id": "sess_1"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := cached.Get(ctx, "orchestrator.session_note", map[string]interface{}{"session_id": "sess_2"})
	if err != nil {
		t.Fatal(err)
	}

	if a != "session sess_1" || b != "session sess_2" {
		t.Errorf("interpolation reused across calls: %q / %q", a, b)
	}
	if gets, _, _ := mock.calls(); gets != 1 {
		t.Errorf("underlying gets = %d, want 1", gets)
	}
}

func TestCachedRegistry_Metadata(t *testing.T) {
	mock := newMockRegistry()
	mock.add("subagent.analyze", "default", "schema prompt")
	cached := NewCachedRegistry(mock, time.Minute)
	ctx := context.Background()

	first, err := cached.GetMetadata(ctx, "subagent.analyze")
	if err != nil {
		t.Fatal(err)
	}
	first.Version = "mutated"

	second, err := cached.GetMetadata(ctx, "subagent.analyze")
	if err != nil {
		t.Fatal(err)
	}
	if second.Version != "1.0.0" {
		t.Errorf("cached metadata mutated through returned copy: %s", second.Version)
	}
	if _, metas, _ := mock.calls(); metas != 1 {
		t.Errorf("underlying meta calls = %d, want 1", metas)
	}
}

func TestCachedRegistry_InvalidateKey(t *testing.T) {
	mock := newMockRegistry()
	mock.add("a", "default", "content a")
	mock.add("a", "terse", "terse a")
	mock.add("b", "default", "content b")
	cached := NewCachedRegistry(mock, time.Minute)
	ctx := context.Background()

	cached.Get(ctx, "a", nil)
	cached.GetWithVariant(ctx, "a", "terse", nil)
	cached.Get(ctx, "b", nil)

	cached.InvalidateKey("a")

	cached.Get(ctx, "a", nil)
	cached.GetWithVariant(ctx, "a", "terse", nil)
	cached.Get(ctx, "b", nil)

	// Both "a" variants refetched, "b" stays cached.
	if gets, _, _ := mock.calls(); gets != 5 {
		t.Errorf("underlying gets = %d, want 5", gets)
	}
}

func TestCachedRegistry_Reload(t *testing.T) {
	mock := newMockRegistry()
	mock.add("a", "default", "old")
	cached := NewCachedRegistry(mock, time.Minute)
	ctx := context.Background()

	if _, err := cached.Get(ctx, "a", nil); err != nil {
		t.Fatal(err)
	}
	mock.add("a", "default", "new")

	if err := cached.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	got, err := cached.Get(ctx, "a", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "new" {
		t.Errorf("Get() after Reload = %q, want new", got)
	}
	if _, _, reloads := mock.calls(); reloads != 1 {
		t.Errorf("underlying reloads = %d, want 1", reloads)
	}
}

func TestCachedRegistry_WatchInvalidates(t *testing.T) {
	mock := newMockRegistry()
	mock.add("a", "default", "old")
	cached := NewCachedRegistry(mock, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := cached.Watch(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := cached.Get(ctx, "a", nil); err != nil {
		t.Fatal(err)
	}
	mock.add("a", "default", "new")

	mock.updates <- PromptUpdate{Key: "a", Action: "modified"}

	select {
	case update := <-updates:
		if update.Key != "a" {
			t.Errorf("forwarded key = %s", update.Key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("update not forwarded")
	}

	got, err := cached.Get(ctx, "a", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "new" {
		t.Errorf("Get() after invalidating update = %q, want new", got)
	}
}

func TestCachedRegistry_ConcurrentAccess(t *testing.T) {
	mock := newMockRegistry()
	mock.add("a", "default", "content")
	cached := NewCachedRegistry(mock, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := cached.Get(ctx, "a", nil); err != nil {
					t.Errorf("Get() failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestMakeCacheKey(t *testing.T) {
	if got := makeCacheKey("orchestrator.frame", "success"); got != "orchestrator.frame:success" {
		t.Errorf("makeCacheKey() = %q", got)
	}
}

func TestKeyFromCacheKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"orchestrator.frame:success", "orchestrator.frame"},
		{"plain", "plain"},
		{"a:b:c", "a"},
	}
	for _, tt := range tests {
		if got := keyFromCacheKey(tt.in); got != tt.want {
			t.Errorf("keyFromCacheKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
