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

	_ "github.com/lib/pq" // postgres
	"github.com/teradata-labs/heddle/pkg/workflow"
)

// Postgres persists workflows in PostgreSQL for multi-instance deployments.
type Postgres struct {
	db *sql.DB
}

// NewPostgres connects and ensures the schema exists.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Postgres{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Postgres) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workflows (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		domain TEXT,
		tags_json TEXT,
		output_type TEXT NOT NULL,
		is_draft BOOLEAN NOT NULL DEFAULT TRUE,
		validation_score DOUBLE PRECISION DEFAULT 0,
		validation_count INTEGER DEFAULT 0,
		definition BYTEA NOT NULL,
		compressed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_workflows_user ON workflows(user_id);
	CREATE INDEX IF NOT EXISTS idx_workflows_user_draft ON workflows(user_id, is_draft);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Postgres) Create(ctx context.Context, w *workflow.Workflow) error {
	data, compressed, err := encodeDefinition(w)
	if err != nil {
		return err
	}
	tags, err := json.Marshal(w.Metadata.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, user_id, name, description, domain, tags_json,
			output_type, is_draft, validation_score, validation_count,
			definition, compressed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING`,
		w.ID, w.UserID, w.Metadata.Name, w.Metadata.Description, w.Metadata.Domain,
		string(tags), w.Metadata.OutputType, w.Metadata.IsDraft,
		w.Metadata.ValidationScore, w.Metadata.ValidationCount,
		data, compressed,
		w.Metadata.CreatedAt.Unix(), w.Metadata.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrExists
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id, userID string) (*workflow.Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, definition, compressed FROM workflows WHERE id = $1`, id)
	return scanPGWorkflow(row, userID)
}

// Update locks the row with SELECT ... FOR UPDATE so concurrent edits of
// the same workflow queue behind each other.
func (s *Postgres) Update(ctx context.Context, id, userID string, fn func(*workflow.Workflow) error) (*workflow.Workflow, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT user_id, definition, compressed FROM workflows WHERE id = $1 FOR UPDATE`, id)
	w, err := scanPGWorkflow(row, userID)
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

	_, err = tx.ExecContext(ctx, `
		UPDATE workflows SET name = $1, description = $2, domain = $3, tags_json = $4,
			output_type = $5, is_draft = $6, validation_score = $7, validation_count = $8,
			definition = $9, compressed = $10, updated_at = $11
		WHERE id = $12`,
		w.Metadata.Name, w.Metadata.Description, w.Metadata.Domain, string(tags),
		w.Metadata.OutputType, w.Metadata.IsDraft,
		w.Metadata.ValidationScore, w.Metadata.ValidationCount,
		data, compressed, w.Metadata.UpdatedAt.Unix(),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	committed = true
	return w, nil
}

func (s *Postgres) List(ctx context.Context, userID string, f Filter) ([]*workflow.Workflow, error) {
	query := `SELECT user_id, definition, compressed FROM workflows WHERE user_id = $1`
	args := []any{userID}
	if !f.IncludeDrafts {
		query += ` AND is_draft = FALSE`
	}
	if f.Domain != "" {
		query += fmt.Sprintf(` AND domain = $%d`, len(args)+1)
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
		var compressed bool
		if err := rows.Scan(&ownerID, &data, &compressed); err != nil {
			return nil, err
		}
		w, err := decodeDefinition(data, compressed)
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

func (s *Postgres) Close() error { return s.db.Close() }

func scanPGWorkflow(row rowScanner, userID string) (*workflow.Workflow, error) {
	var ownerID string
	var data []byte
	var compressed bool
	if err := row.Scan(&ownerID, &data, &compressed); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	if ownerID != userID {
		return nil, ErrForbidden
	}
	return decodeDefinition(data, compressed)
}

var _ Store = (*Postgres)(nil)
