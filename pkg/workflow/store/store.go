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

// Package store persists workflows. Backends share one contract: reads
// return isolated copies, writes are atomic per workflow id, and callers
// from different users never see each other's workflows.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/teradata-labs/heddle/pkg/workflow"
)

var (
	// ErrNotFound is returned when no workflow has the requested id.
	ErrNotFound = errors.New("workflow not found")
	// ErrForbidden is returned when the workflow exists but belongs to a
	// different user.
	ErrForbidden = errors.New("workflow belongs to another user")
	// ErrExists is returned by Create when the id is already taken.
	ErrExists = errors.New("workflow already exists")
)

// Filter narrows List results. Zero value lists a user's published
// workflows across all domains.
type Filter struct {
	Domain        string
	Tags          []string
	IncludeDrafts bool
}

// Store is the persistence contract shared by all backends. Update runs
// fn inside the backend's transaction so concurrent edits of the same
// workflow serialize: fn receives the current state, mutates it, and the
// post-state is committed only if fn returns nil.
type Store interface {
	Create(ctx context.Context, w *workflow.Workflow) error
	Get(ctx context.Context, id, userID string) (*workflow.Workflow, error)
	Update(ctx context.Context, id, userID string, fn func(*workflow.Workflow) error) (*workflow.Workflow, error)
	List(ctx context.Context, userID string, f Filter) ([]*workflow.Workflow, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Driver is one of memory, sqlite, postgres, mysql. Empty means memory.
	Driver string
	// DSN is the connection string; for sqlite it is the database path.
	DSN string
	// Encrypt enables SQLCipher encryption at rest (sqlite only, requires
	// a cgo build).
	Encrypt bool
	// EncryptionKey is the SQLCipher key. Falls back to HEDDLE_DB_KEY.
	EncryptionKey string
}

// Open creates a Store from config.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		return NewSQLite(cfg)
	case "postgres":
		return NewPostgres(cfg.DSN)
	case "mysql":
		return NewMySQL(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s (supported: memory, sqlite, postgres, mysql)", cfg.Driver)
	}
}
