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
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// CachedRegistry wraps a PromptRegistry with an in-memory TTL cache over
// raw template content. Interpolation still runs per call since variables
// change per request; what the cache saves is the underlying lookup and,
// for directory-backed registries, any lazy reload.
//
// Example:
//
//	files := prompts.NewFileRegistry(cfg.PromptsDir)
//	registry := prompts.NewCachedRegistry(files, 5*time.Minute)
//	system, err := registry.Get(ctx, "orchestrator.system", nil)
type CachedRegistry struct {
	underlying PromptRegistry
	ttl        time.Duration

	mu       sync.RWMutex
	content  map[string]*cacheEntry         // key:variant -> template
	metadata map[string]*metadataCacheEntry // key -> metadata

	hits   atomic.Uint64
	misses atomic.Uint64
}

type cacheEntry struct {
	content   string
	expiresAt time.Time
}

type metadataCacheEntry struct {
	metadata  *PromptMetadata
	expiresAt time.Time
}

// NewCachedRegistry creates a cached registry with the given TTL. A few
// minutes suits production; use a short TTL alongside hot reload during
// prompt development.
func NewCachedRegistry(underlying PromptRegistry, ttl time.Duration) *CachedRegistry {
	return &CachedRegistry{
		underlying: underlying,
		ttl:        ttl,
		content:    make(map[string]*cacheEntry),
		metadata:   make(map[string]*metadataCacheEntry),
	}
}

// Get retrieves the default variant, from cache when fresh.
func (c *CachedRegistry) Get(ctx context.Context, key string, vars map[string]interface{}) (string, error) {
	return c.GetWithVariant(ctx, key, "default", vars)
}

// GetWithVariant retrieves a named variant, from cache when fresh.
func (c *CachedRegistry) GetWithVariant(ctx context.Context, key string, variant string, vars map[string]interface{}) (string, error) {
	cacheKey := makeCacheKey(key, variant)

	c.mu.RLock()
	entry, found := c.content[cacheKey]
	c.mu.RUnlock()

	if found && time.Now().Before(entry.expiresAt) {
		c.hits.Add(1)
		return Interpolate(entry.content, vars), nil
	}
	c.misses.Add(1)

	// Fetching with nil vars returns the raw template: Interpolate is a
	// no-op on nil, which is what makes the content cacheable.
	raw, err := c.underlying.GetWithVariant(ctx, key, variant, nil)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.content[cacheKey] = &cacheEntry{content: raw, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return Interpolate(raw, vars), nil
}

// GetMetadata retrieves prompt metadata, from cache when fresh.
func (c *CachedRegistry) GetMetadata(ctx context.Context, key string) (*PromptMetadata, error) {
	c.mu.RLock()
	entry, found := c.metadata[key]
	c.mu.RUnlock()

	if found && time.Now().Before(entry.expiresAt) {
		c.hits.Add(1)
		metadata := *entry.metadata
		return &metadata, nil
	}
	c.misses.Add(1)

	metadata, err := c.underlying.GetMetadata(ctx, key)
	if err != nil {
		return nil, err
	}

	stored := *metadata
	c.mu.Lock()
	c.metadata[key] = &metadataCacheEntry{metadata: &stored, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return metadata, nil
}

// List passes through uncached; listings are rare and must see new keys.
func (c *CachedRegistry) List(ctx context.Context, filters map[string]string) ([]string, error) {
	return c.underlying.List(ctx, filters)
}

// Reload reloads the underlying registry and drops the whole cache.
func (c *CachedRegistry) Reload(ctx context.Context) error {
	if err := c.underlying.Reload(ctx); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}

// Watch forwards updates from the underlying registry, invalidating the
// changed key before each notification so receivers read fresh content.
func (c *CachedRegistry) Watch(ctx context.Context) (<-chan PromptUpdate, error) {
	updates, err := c.underlying.Watch(ctx)
	if err != nil {
		return nil, err
	}

	forward := make(chan PromptUpdate)
	go func() {
		defer close(forward)
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				c.InvalidateKey(update.Key)
				select {
				case forward <- update:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return forward, nil
}

// Invalidate drops every cached entry.
func (c *CachedRegistry) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = make(map[string]*cacheEntry)
	c.metadata = make(map[string]*metadataCacheEntry)
}

// InvalidateKey drops one key's metadata and all its variants.
func (c *CachedRegistry) InvalidateKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.metadata, key)
	for cacheKey := range c.content {
		if keyFromCacheKey(cacheKey) == key {
			delete(c.content, cacheKey)
		}
	}
}

// Stats returns cache hit and miss counts.
func (c *CachedRegistry) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// ResetStats zeroes the hit and miss counters.
func (c *CachedRegistry) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
}

func makeCacheKey(key, variant string) string {
	return fmt.Sprintf("%s:%s", key, variant)
}

func keyFromCacheKey(cacheKey string) string {
	if i := strings.IndexByte(cacheKey, ':'); i >= 0 {
		return cacheKey[:i]
	}
	return cacheKey
}
