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
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileRegistry serves the compiled-in default prompts, overlaid by YAML
// files from an optional directory. A directory file whose key matches a
// default replaces it; new keys extend the set.
//
// Directory structure mirrors key areas:
//
//	prompts/
//	  orchestrator/
//	    system.yaml            # key: orchestrator.system
//	    frame.success.yaml     # key: orchestrator.frame, variant: success
//	  subagent/
//	    analyze.yaml           # key: subagent.analyze
//
// File format is YAML frontmatter between --- markers, then the template:
//
//	---
//	key: orchestrator.system
//	version: 1.0.0
//	description: Role and tool policy for the workflow assistant
//	tags: [orchestrator]
//	variants: [default]
//	---
//	You are an assistant that builds executable workflows...
type FileRegistry struct {
	rootDir string // "" serves defaults only

	mu      sync.RWMutex
	prompts map[string]*filePrompt // key -> prompt
}

// filePrompt is one loaded key with all its variants.
type filePrompt struct {
	metadata PromptMetadata
	variants map[string]string // variant name -> template
}

// frontmatter is the YAML header of a prompt file.
type frontmatter struct {
	Key         string    `yaml:"key"`
	Version     string    `yaml:"version"`
	Author      string    `yaml:"author"`
	Description string    `yaml:"description"`
	Tags        []string  `yaml:"tags"`
	Variants    []string  `yaml:"variants"`
	Variables   []string  `yaml:"variables"`
	CreatedAt   time.Time `yaml:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at"`
}

// NewFileRegistry creates a registry rooted at dir. An empty dir serves
// only the compiled-in defaults. The registry is usable immediately; the
// first Reload happens lazily on first access if the caller skipped it.
func NewFileRegistry(dir string) *FileRegistry {
	return &FileRegistry{rootDir: dir}
}

// Get retrieves the default variant of a prompt with interpolation.
func (r *FileRegistry) Get(ctx context.Context, key string, vars map[string]interface{}) (string, error) {
	return r.GetWithVariant(ctx, key, "default", vars)
}

// GetWithVariant retrieves a named variant of a prompt.
func (r *FileRegistry) GetWithVariant(ctx context.Context, key string, variant string, vars map[string]interface{}) (string, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return "", err
	}

	r.mu.RLock()
	prompt, ok := r.prompts[key]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("prompt not found: %s", key)
	}

	content, ok := prompt.variants[variant]
	if !ok {
		return "", fmt.Errorf("variant not found: %s (key: %s)", variant, key)
	}

	return Interpolate(content, vars), nil
}

// GetMetadata retrieves prompt metadata without the content.
func (r *FileRegistry) GetMetadata(ctx context.Context, key string) (*PromptMetadata, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	prompt, ok := r.prompts[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("prompt not found: %s", key)
	}

	metadata := prompt.metadata
	return &metadata, nil
}

// List returns all known prompt keys, optionally filtered by "tag" or
// "prefix".
func (r *FileRegistry) List(ctx context.Context, filters map[string]string) ([]string, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var keys []string
	for key, prompt := range r.prompts {
		if !matchFilters(prompt, filters) {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Reload rebuilds the prompt set: compiled-in defaults first, then the
// override directory. The swap is atomic; readers never observe a half
// loaded set.
func (r *FileRegistry) Reload(ctx context.Context) error {
	loaded := make(map[string]*filePrompt)

	if err := loadTree(defaultsFS, "defaults", loaded); err != nil {
		return fmt.Errorf("loading embedded prompts: %w", err)
	}

	if r.rootDir != "" {
		if _, err := os.Stat(r.rootDir); err == nil {
			if err := loadTree(os.DirFS(r.rootDir), ".", loaded); err != nil {
				return fmt.Errorf("loading prompts from %s: %w", r.rootDir, err)
			}
		}
	}

	r.mu.Lock()
	r.prompts = loaded
	r.mu.Unlock()
	return nil
}

// ensureLoaded performs the first Reload for registries used without an
// explicit load step.
func (r *FileRegistry) ensureLoaded(ctx context.Context) error {
	r.mu.RLock()
	loaded := r.prompts != nil
	r.mu.RUnlock()
	if loaded {
		return nil
	}
	return r.Reload(ctx)
}

// loadTree walks a prompt tree and merges every YAML file into dst.
// Later trees override earlier ones per key and variant.
func loadTree(fsys fs.FS, root string, dst map[string]*filePrompt) error {
	return fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}

		meta, content, err := parsePromptFile(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		variant := extractVariant(path)

		entry, ok := dst[meta.Key]
		if !ok {
			entry = &filePrompt{variants: make(map[string]string)}
			dst[meta.Key] = entry
		}
		// The default-variant file carries the authoritative metadata;
		// any file wins when none has claimed the key yet.
		if variant == "default" || entry.metadata.Key == "" {
			entry.metadata = meta
		}
		entry.variants[variant] = content
		return nil
	})
}

// parsePromptFile splits YAML frontmatter from the template body.
func parsePromptFile(data []byte) (PromptMetadata, string, error) {
	parts := strings.SplitN(string(data), "---", 3)
	if len(parts) < 3 {
		return PromptMetadata{}, "", fmt.Errorf("invalid format: expected YAML frontmatter between --- markers")
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(parts[1]), &fm); err != nil {
		return PromptMetadata{}, "", fmt.Errorf("parsing frontmatter: %w", err)
	}
	if fm.Key == "" {
		return PromptMetadata{}, "", fmt.Errorf("frontmatter missing key")
	}

	meta := PromptMetadata{
		Key:         fm.Key,
		Version:     fm.Version,
		Author:      fm.Author,
		Description: fm.Description,
		Tags:        fm.Tags,
		Variants:    fm.Variants,
		Variables:   fm.Variables,
		CreatedAt:   fm.CreatedAt,
		UpdatedAt:   fm.UpdatedAt,
	}
	return meta, strings.TrimSpace(parts[2]), nil
}

// extractVariant reads the variant from the file name.
//
//	analyze.yaml        -> "default"
//	analyze.strict.yaml -> "strict"
//	frame.success.yaml  -> "success"
func extractVariant(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	parts := strings.Split(base, ".")
	if len(parts) == 1 {
		return "default"
	}
	return parts[len(parts)-1]
}

// Watch emits an update whenever a YAML file under the override directory
// changes. Every event triggers a full Reload before the notification is
// sent, so a receiver may Get immediately. Registries without an override
// directory have nothing to watch.
func (r *FileRegistry) Watch(ctx context.Context) (<-chan PromptUpdate, error) {
	if r.rootDir == "" {
		return nil, fmt.Errorf("no prompt directory configured")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := watchDirectory(watcher, r.rootDir); err != nil {
		watcher.Close()
		return nil, err
	}

	ch := make(chan PromptUpdate, 10)
	go func() {
		defer watcher.Close()
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, ".yaml") && !strings.HasSuffix(event.Name, ".yml") {
					// New subdirectories must be added to the watch set.
					if event.Op&fsnotify.Create != 0 {
						if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
							_ = watcher.Add(event.Name)
						}
					}
					continue
				}

				switch {
				case event.Op&fsnotify.Write != 0:
					r.notifyChange(ch, event.Name, "modified")
				case event.Op&fsnotify.Create != 0:
					r.notifyChange(ch, event.Name, "created")
				case event.Op&fsnotify.Remove != 0 || event.Op&fsnotify.Rename != 0:
					r.notifyChange(ch, event.Name, "deleted")
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				ch <- PromptUpdate{Action: "error", Error: err}
			}
		}
	}()

	return ch, nil
}

// watchDirectory adds dir and its subdirectories to the watcher.
func watchDirectory(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := watcher.Add(path); err != nil {
				return fmt.Errorf("watching directory %s: %w", path, err)
			}
		}
		return nil
	})
}

// notifyChange reloads the registry and sends one update for the changed
// file.
func (r *FileRegistry) notifyChange(ch chan<- PromptUpdate, path string, action string) {
	key := r.keyForPath(path)

	if err := r.Reload(context.Background()); err != nil {
		ch <- PromptUpdate{Key: key, Action: "error", Error: err}
		return
	}

	update := PromptUpdate{Key: key, Action: action, Timestamp: time.Now()}
	r.mu.RLock()
	if p, ok := r.prompts[key]; ok {
		update.Version = p.metadata.Version
	}
	r.mu.RUnlock()
	ch <- update
}

// keyForPath maps an override file path to its prompt key. The key
// normally comes from the file's frontmatter; for deleted files it falls
// back to the path with separators as dots, dropping a trailing variant
// component when the shorter key is the known one.
func (r *FileRegistry) keyForPath(path string) string {
	if data, err := os.ReadFile(path); err == nil {
		if meta, _, err := parsePromptFile(data); err == nil {
			return meta.Key
		}
	}

	rel, err := filepath.Rel(r.rootDir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	key := strings.ReplaceAll(rel, string(filepath.Separator), ".")

	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.prompts[key]; ok {
		return key
	}
	if i := strings.LastIndex(key, "."); i > 0 {
		if _, ok := r.prompts[key[:i]]; ok {
			return key[:i]
		}
	}
	return key
}

// matchFilters checks a prompt against List filters.
func matchFilters(prompt *filePrompt, filters map[string]string) bool {
	for key, value := range filters {
		switch key {
		case "tag":
			if !containsString(prompt.metadata.Tags, value) {
				return false
			}
		case "prefix":
			if !strings.HasPrefix(prompt.metadata.Key, value) {
				return false
			}
		}
	}
	return true
}

func containsString(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
