package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    fields TEXT NOT NULL,
    UNIQUE (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection, seq);
`

// SQLiteStore persists documents in a single SQLite table. Change
// notifications cover writes made through this process only.
type SQLiteStore struct {
	db *sql.DB

	// writeMu serializes writes so each revision maps to exactly one snapshot
	writeMu   sync.Mutex
	revisions map[Collection]uint64
	hub       *hub
}

// OpenSQLite opens (or creates) the database at path and applies the schema
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared between calls
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &SQLiteStore{
		db:        db,
		revisions: make(map[Collection]uint64),
		hub:       newHub(),
	}
	for _, c := range Collections {
		s.revisions[c] = 1
	}
	return s, nil
}

// Create inserts a new document and returns its generated id
func (s *SQLiteStore) Create(ctx context.Context, c Collection, fields Fields) (string, error) {
	if err := validCollection(c); err != nil {
		return "", err
	}
	body, err := encodeFields(fields)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	err = s.write(ctx, c, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, fields) VALUES (?, ?, ?)`,
			string(c), id, body)
		if err != nil {
			return fmt.Errorf("failed to insert %s/%s: %w", c, id, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ReadAll returns the documents of a collection in arrival order
func (s *SQLiteStore) ReadAll(ctx context.Context, c Collection) ([]Document, error) {
	if err := validCollection(c); err != nil {
		return nil, err
	}
	return readAll(ctx, s.db, c)
}

// Update merges partial into an existing document
func (s *SQLiteStore) Update(ctx context.Context, c Collection, id string, partial Fields) error {
	if err := validCollection(c); err != nil {
		return err
	}
	patch, err := cloneFields(partial)
	if err != nil {
		return err
	}

	return s.write(ctx, c, func(tx *sql.Tx) error {
		var body string
		err := tx.QueryRowContext(ctx,
			`SELECT fields FROM documents WHERE collection = ? AND id = ?`,
			string(c), id).Scan(&body)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%s/%s: %w", c, id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read %s/%s: %w", c, id, err)
		}

		current, err := decodeFields(body)
		if err != nil {
			return err
		}
		for k, v := range patch {
			current[k] = v
		}
		merged, err := encodeFields(current)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET fields = ? WHERE collection = ? AND id = ?`,
			merged, string(c), id); err != nil {
			return fmt.Errorf("failed to update %s/%s: %w", c, id, err)
		}
		return nil
	})
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, c Collection, id string) error {
	if err := validCollection(c); err != nil {
		return err
	}
	return s.write(ctx, c, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND id = ?`,
			string(c), id); err != nil {
			return fmt.Errorf("failed to delete %s/%s: %w", c, id, err)
		}
		return nil
	})
}

// Subscribe registers fn and immediately delivers the current snapshot
func (s *SQLiteStore) Subscribe(ctx context.Context, c Collection, fn Listener) (func(), error) {
	if err := validCollection(c); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	docs, err := readAll(ctx, s.db, c)
	if err != nil {
		s.writeMu.Unlock()
		return nil, err
	}
	id := s.hub.add(c, fn)
	snap := Snapshot{Collection: c, Revision: s.revisions[c], Docs: docs}
	s.writeMu.Unlock()

	fn(snap)

	var once sync.Once
	return func() {
		once.Do(func() { s.hub.remove(c, id) })
	}, nil
}

// Close drops subscribers and closes the database
func (s *SQLiteStore) Close() error {
	s.hub.clear()
	return s.db.Close()
}

// write runs fn in a transaction, then publishes the new snapshot
func (s *SQLiteStore) write(ctx context.Context, c Collection, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.writeMu.Unlock()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		s.writeMu.Unlock()
		return err
	}
	if err := tx.Commit(); err != nil {
		s.writeMu.Unlock()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.revisions[c]++
	rev := s.revisions[c]
	docs, err := readAll(ctx, s.db, c)
	s.writeMu.Unlock()
	if err != nil {
		// committed; subscribers catch up on the next write
		return nil
	}

	s.hub.publish(Snapshot{Collection: c, Revision: rev, Docs: docs})
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readAll(ctx context.Context, q queryer, c Collection) ([]Document, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, fields FROM documents WHERE collection = ? ORDER BY seq`, string(c))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c, err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", c, err)
		}
		fields, err := decodeFields(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", c, err)
	}
	return docs, nil
}

func encodeFields(f Fields) (string, error) {
	if f == nil {
		f = Fields{}
	}
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("failed to marshal fields: %w", err)
	}
	return string(data), nil
}

func decodeFields(body string) (Fields, error) {
	f := Fields{}
	if err := json.Unmarshal([]byte(body), &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	if f == nil {
		f = Fields{}
	}
	return f, nil
}
