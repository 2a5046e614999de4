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

	_ "github.com/go-sql-driver/mysql" // mysql
	"github.com/teradata-labs/heddle/pkg/workflow"
)

// MySQL persists workflows in MySQL/MariaDB.
type MySQL struct {
	db *sql.DB
}

// NewMySQL connects and ensures the schema exists.
func NewMySQL(dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &MySQL{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *MySQL) initSchema() error {
	// MySQL needs a bounded key length for the primary key.
	schema := `
	CREATE TABLE IF NOT EXISTS workflows (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(191) NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		domain VARCHAR(191),
		tags_json TEXT,
		output_type VARCHAR(16) NOT NULL,
		is_draft BOOLEAN NOT NULL DEFAULT TRUE,
		validation_score DOUBLE DEFAULT 0,
		validation_count INT DEFAULT 0,
		definition LONGBLOB NOT NULL,
		compressed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		INDEX idx_workflows_user (user_id),
		INDEX idx_workflows_user_draft (user_id, is_draft)
	)`
	_, err := s.db.Exec(schema)
	return err
}

func (s *MySQL) Create(ctx context.Context, w *workflow.Workflow) error {
	data, compressed, err := encodeDefinition(w)
	if err != nil {
		return err
	}
	tags, err := json.Marshal(w.Metadata.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT IGNORE INTO workflows (id, user_id, name, description, domain, tags_json,
			output_type, is_draft, validation_score, validation_count,
			definition, compressed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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

func (s *MySQL) Get(ctx context.Context, id, userID string) (*workflow.Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, definition, compressed FROM workflows WHERE id = ?`, id)
	return scanPGWorkflow(row, userID)
}

// Update locks the row with SELECT ... FOR UPDATE, same contract as the
// Postgres backend.
func (s *MySQL) Update(ctx context.Context, id, userID string, fn func(*workflow.Workflow) error) (*workflow.Workflow, error) {
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
		`SELECT user_id, definition, compressed FROM workflows WHERE id = ? FOR UPDATE`, id)
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
		UPDATE workflows SET name = ?, description = ?, domain = ?, tags_json = ?,
			output_type = ?, is_draft = ?, validation_score = ?, validation_count = ?,
			definition = ?, compressed = ?, updated_at = ?
		WHERE id = ?`,
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

func (s *MySQL) List(ctx context.Context, userID string, f Filter) ([]*workflow.Workflow, error) {
	query := `SELECT user_id, definition, compressed FROM workflows WHERE user_id = ?`
	args := []any{userID}
	if !f.IncludeDrafts {
		query += ` AND is_draft = FALSE`
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

func (s *MySQL) Close() error { return s.db.Close() }

var _ Store = (*MySQL)(nil)
