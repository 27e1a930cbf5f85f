// ABOUTME: SQLite-backed Store using mattn/go-sqlite3 in WAL mode.
// ABOUTME: Keeps current documents in pipelines and an append-only pipeline_changes history.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/2389-research/pipeconf/pipeline"
)

const timeLayout = time.RFC3339Nano

// SqliteStore is a Store persisted in a SQLite database file.
type SqliteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSqlite opens or creates the database at path and migrates the schema.
func OpenSqlite(path string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS pipelines (
			name TEXT PRIMARY KEY,
			document TEXT NOT NULL,
			etag TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS pipeline_changes (
			change_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			action TEXT NOT NULL,
			etag TEXT NOT NULL,
			document TEXT,
			changed_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_pipeline_changes_name
			ON pipeline_changes(name, change_id);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SqliteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var doc, etag, updated string
	if err := row.Scan(&doc, &etag, &updated); err != nil {
		return Record{}, err
	}
	p, err := pipeline.Decode([]byte(doc))
	if err != nil {
		return Record{}, fmt.Errorf("decode stored pipeline: %w", err)
	}
	at, err := time.Parse(timeLayout, updated)
	if err != nil {
		return Record{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return Record{Pipeline: p, ETag: etag, UpdatedAt: at}, nil
}

// List returns every pipeline ordered by name.
func (s *SqliteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document, etag, updated_at FROM pipelines ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns one pipeline.
func (s *SqliteStore) Get(ctx context.Context, name string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT document, etag, updated_at FROM pipelines WHERE name = ?`, name)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get pipeline %s: %w", name, err)
	}
	return r, nil
}

// Create stores a new pipeline.
func (s *SqliteStore) Create(ctx context.Context, p *pipeline.Pipeline) (Record, error) {
	doc, etag, err := encode(p)
	if err != nil {
		return Record{}, err
	}
	at := s.now().UTC()

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM pipelines WHERE name = ?`, p.Name()).Scan(&exists)
		if err != nil {
			return err
		}
		if exists > 0 {
			return ErrAlreadyExists
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pipelines (name, document, etag, updated_at) VALUES (?, ?, ?, ?)`,
			p.Name(), string(doc), etag, at.Format(timeLayout)); err != nil {
			return fmt.Errorf("insert pipeline: %w", err)
		}
		return insertChange(ctx, tx, p.Name(), ActionCreate, etag, doc, at)
	})
	if err != nil {
		return Record{}, err
	}
	return Record{Pipeline: p.Clone(), ETag: etag, UpdatedAt: at}, nil
}

// Put replaces a pipeline guarded by its current ETag.
func (s *SqliteStore) Put(ctx context.Context, p *pipeline.Pipeline, ifMatch string) (Record, error) {
	doc, etag, err := encode(p)
	if err != nil {
		return Record{}, err
	}
	at := s.now().UTC()

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkETag(ctx, tx, p.Name(), ifMatch); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE pipelines SET document = ?, etag = ?, updated_at = ? WHERE name = ?`,
			string(doc), etag, at.Format(timeLayout), p.Name()); err != nil {
			return fmt.Errorf("update pipeline: %w", err)
		}
		return insertChange(ctx, tx, p.Name(), ActionUpdate, etag, doc, at)
	})
	if err != nil {
		return Record{}, err
	}
	return Record{Pipeline: p.Clone(), ETag: etag, UpdatedAt: at}, nil
}

// Delete removes a pipeline.
func (s *SqliteStore) Delete(ctx context.Context, name, ifMatch string) error {
	at := s.now().UTC()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT etag FROM pipelines WHERE name = ?`, name).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if ifMatch != "" && current != ifMatch {
			return ErrPreconditionFailed
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pipelines WHERE name = ?`, name); err != nil {
			return fmt.Errorf("delete pipeline: %w", err)
		}
		return insertChange(ctx, tx, name, ActionDelete, current, nil, at)
	})
}

// History returns the pipeline's changes, oldest first.
func (s *SqliteStore) History(ctx context.Context, name string) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT change_id, action, etag, changed_at FROM pipeline_changes
		 WHERE name = ? ORDER BY change_id`, name)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Change
	for rows.Next() {
		c := Change{Name: name}
		var action, at string
		if err := rows.Scan(&c.ID, &action, &c.ETag, &at); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		c.Action = Action(action)
		if c.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("parse changed_at: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *SqliteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func checkETag(ctx context.Context, tx *sql.Tx, name, ifMatch string) error {
	var current string
	err := tx.QueryRowContext(ctx, `SELECT etag FROM pipelines WHERE name = ?`, name).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read etag: %w", err)
	}
	if current != ifMatch {
		return ErrPreconditionFailed
	}
	return nil
}

func insertChange(ctx context.Context, tx *sql.Tx, name string, action Action, etag string, doc []byte, at time.Time) error {
	var document any
	if doc != nil {
		document = string(doc)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO pipeline_changes (change_id, name, action, etag, document, changed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		newChangeID(), name, string(action), etag, document, at.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("record change: %w", err)
	}
	return nil
}
