package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jpalmerr/winevent/internal/linebuffer"
	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

const schemaLines = `
CREATE TABLE IF NOT EXISTS lines (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    ts INTEGER NOT NULL,
    text TEXT NOT NULL,
    source TEXT NOT NULL,
    stored_at INTEGER NOT NULL
);
`

const schemaLinesIndex = `
CREATE INDEX IF NOT EXISTS lines_source_ts ON lines (source, ts);
`

const insertLine = `
		INSERT INTO lines (id, kind, ts, text, source, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

const selectRecent = `SELECT kind, ts, text, source FROM lines ORDER BY rowid DESC LIMIT ?`

// SQLite stores lines in a SQLite table.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the database at path and ensures the lines
// table exists.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return NewSQLite(db), nil
}

// NewSQLite wraps an open database whose schema is already in place.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{schemaLines, schemaLinesIndex} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}

// Write inserts the batch in a single transaction. Each line gets a fresh
// uuid primary key.
func (s *SQLite) Write(ctx context.Context, lines []linebuffer.Line) error {
	if len(lines) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin line insert: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	storedAt := s.now().UnixMilli()
	for _, l := range lines {
		if _, err := tx.ExecContext(ctx, insertLine,
			uuid.NewString(),
			l.Kind,
			l.Timestamp,
			l.Text,
			l.Source,
			storedAt,
		); err != nil {
			return fmt.Errorf("insert line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit line insert: %w", err)
	}
	return nil
}

// Recent returns up to limit lines, newest first.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]linebuffer.Line, error) {
	rows, err := s.db.QueryContext(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent lines: %w", err)
	}
	defer rows.Close()

	var out []linebuffer.Line
	for rows.Next() {
		var l linebuffer.Line
		if err := rows.Scan(&l.Kind, &l.Timestamp, &l.Text, &l.Source); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lines: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
