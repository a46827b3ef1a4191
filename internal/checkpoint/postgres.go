// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Postgres schema (reference):
//
// CREATE TABLE IF NOT EXISTS journal_cursor (
//   id      SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
//   cursor  TEXT NOT NULL
// );
//
// The id=1 check constraint keeps this a genuine single-row table: the
// upsert below always targets that one row, mirroring the teacher's
// persistence.PostgresPersister ON CONFLICT idiom but with a marker row
// in place of the teacher's per-key counters table.

// PostgresStore persists the journal cursor as the single row of a
// one-row table, using the teacher's INSERT ... ON CONFLICT upsert
// idiom (persistence/postgres.go) rather than its applied_commits
// idempotency-marker pattern: a cursor save has no commit identity to
// de-duplicate against, only a value to overwrite.
type PostgresStore struct {
	db             *sql.DB
	defaultTimeout time.Duration
}

// NewPostgresStore opens (but does not yet connect to) db at dsn.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: opening postgres: %w", err)
	}
	return &PostgresStore{db: db, defaultTimeout: 10 * time.Second}, nil
}

func (p *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.defaultTimeout)
}

// LoadCursor fetches the saved cursor row. An empty table (no row yet,
// i.e. a fresh install) is reported as ok=false with no error.
func (p *PostgresStore) LoadCursor() (string, bool, error) {
	ctx, cancel := p.withTimeout(context.Background())
	defer cancel()

	var cursor string
	err := p.db.QueryRowContext(ctx, `SELECT cursor FROM journal_cursor WHERE id = 1`).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("checkpoint: postgres load cursor: %w", err)
	}
	return cursor, true, nil
}

// SaveCursor upserts the single cursor row.
func (p *PostgresStore) SaveCursor(cursor string) error {
	ctx, cancel := p.withTimeout(context.Background())
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO journal_cursor(id, cursor) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET cursor = EXCLUDED.cursor
	`, cursor)
	if err != nil {
		return fmt.Errorf("checkpoint: postgres save cursor: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

var _ Store = (*PostgresStore)(nil)
