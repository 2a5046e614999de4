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
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/teradata-labs/heddle/internal/sqlitedriver"
	"github.com/teradata-labs/heddle/pkg/workflow"
)

// SQLite persists workflows in a single SQLite file. Encryption at rest is
// available in cgo builds via SQLCipher; see internal/sqlitedriver.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and if necessary creates) the workflow database.
func NewSQLite(cfg Config) (*SQLite, error) {
	if cfg.Encrypt && !sqlitedriver.EncryptionSupported {
		return nil, fmt.Errorf("database encryption requires a cgo build with SQLCipher support")
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Encrypt {
		key := cfg.EncryptionKey
		if key == "" {
			key = os.Getenv("HEDDLE_DB_KEY")
		}
		if key == "" {
			db.Close()
			return nil, fmt.Errorf("encryption enabled but no key provided (set EncryptionKey or HEDDLE_DB_KEY)")
		}
		// Must be the first statement on the connection.
		if _, err := db.Exec(fmt.Sprintf("PRAGMA key = '%s'", key)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set encryption key: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		if cfg.Encrypt {
			return nil, fmt.Errorf("failed to verify encryption key (wrong key or corrupted database): %w", err)
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for concurrent readers during writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workflows (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		domain TEXT,
		tags_json TEXT,
		output_type TEXT NOT NULL,
		is_draft INTEGER NOT NULL DEFAULT 1,
		validation_score REAL DEFAULT 0,
		validation_count INTEGER DEFAULT 0,
		definition BLOB NOT NULL,
		compressed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_workflows_user ON workflows(user_id);
	CREATE INDEX IF NOT EXISTS idx_workflows_user_draft ON workflows(user_id, is_draft);
	CREATE INDEX IF NOT EXISTS idx_workflows_updated ON workflows(updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) Create(ctx context.Context, w *workflow.Workflow) error {
	data, compressed, err := encodeDefinition(w)
	if err != nil {
		return err
	}
	tags, err := json.Marshal(w.Metadata.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, user_id, name, description, domain, tags_json,
			output_type, is_draft, validation_score, validation_count,
			definition, compressed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.UserID, w.Metadata.Name, w.Metadata.Description, w.Metadata.Domain,
		string(tags), w.Metadata.OutputType, boolToInt(w.Metadata.IsDraft),
		w.Metadata.ValidationScore, w.Metadata.ValidationCount,
		data, boolToInt(compressed),
		w.Metadata.CreatedAt.Unix(), w.Metadata.UpdatedAt.Unix(),
	)
	if err != nil {
		var n int
		check := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflows WHERE id = ?`, w.ID)
		if scanErr := check.Scan(&n); scanErr == nil && n > 0 {
			return ErrExists
		}
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id, userID string) (*workflow.Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, definition, compressed FROM workflows WHERE id = ?`, id)
	return scanWorkflow(row, userID)
}

// Update runs fn inside an immediate transaction so the row cannot change
// between the read and the write. SQLite's single-writer lock linearises
// concurrent Update calls for the whole database, which subsumes the
// per-workflow requirement.
func (s *SQLite) Update(ctx context.Context, id, userID string, fn func(*workflow.Workflow) error) (*workflow.Workflow, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	row := conn.QueryRowContext(ctx,
		`SELECT user_id, definition, compressed FROM workflows WHERE id = ?`, id)
	w, err := scanWorkflow(row, userID)
	if err != nil {
		return nil, err
	}

	if err := fn(w); err != nil {
		return nil, err
	}
	w.Touch()

	data, compressed, err := encodeDefinition(w)
	if err != nil {
		return nil, err
	}
	tags, err := json.Marshal(w.Metadata.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	_, err = conn.ExecContext(ctx, `
		UPDATE workflows SET name = ?, description = ?, domain = ?, tags_json = ?,
			output_type = ?, is_draft = ?, validation_score = ?, validation_count = ?,
			definition = ?, compressed = ?, updated_at = ?
		WHERE id = ?`,
		w.Metadata.Name, w.Metadata.Description, w.Metadata.Domain, string(tags),
		w.Metadata.OutputType, boolToInt(w.Metadata.IsDraft),
		w.Metadata.ValidationScore, w.Metadata.ValidationCount,
		data, boolToInt(compressed), w.Metadata.UpdatedAt.Unix(),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	committed = true
	return w, nil
}

func (s *SQLite) List(ctx context.Context, userID string, f Filter) ([]*workflow.Workflow, error) {
	query := `SELECT user_id, definition, compressed FROM workflows WHERE user_id = ?`
	args := []any{userID}
	if !f.IncludeDrafts {
		query += ` AND is_draft = 0`
	}
	if f.Domain != "" {
		query += ` AND domain = ?`
		args = append(args, f.Domain)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var out []*workflow.Workflow
	for rows.Next() {
		var ownerID string
		var data []byte
		var compressed int
		if err := rows.Scan(&ownerID, &data, &compressed); err != nil {
			return nil, err
		}
		w, err := decodeDefinition(data, compressed != 0)
		if err != nil {
			return nil, err
		}
		if !matchesFilter(w, f) {
			continue
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

// scanWorkflow decodes a (user_id, definition, compressed) row and applies
// the ownership check.
func scanWorkflow(row rowScanner, userID string) (*workflow.Workflow, error) {
	var ownerID string
	var data []byte
	var compressed int
	if err := row.Scan(&ownerID, &data, &compressed); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	if ownerID != userID {
		return nil, ErrForbidden
	}
	return decodeDefinition(data, compressed != 0)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*SQLite)(nil)
