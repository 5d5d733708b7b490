// Package store handles SQLite persistence of session logs awaiting pickup.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/aospan/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Keys under which session logs are stored.
const (
	KeyFull    = "AOSPAN_LOG_FULL"
	KeyPartial = "AOSPAN_LOG_PARTIAL"
)

// ErrNotFound is returned when no record is stored under a key.
var ErrNotFound = errors.New("record not found")

// Store wraps SQLite access for pending session logs.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pending_logs (
			key TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			stored_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pending_logs_stored_at ON pending_logs(stored_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Put stores rec under its key, replacing any previous record.
func (s *Store) Put(ctx context.Context, rec model.PendingRecord) error {
	if rec.Key == "" {
		return fmt.Errorf("record key is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_logs (key, session_id, payload, stored_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			session_id = excluded.session_id,
			payload = excluded.payload,
			stored_at = excluded.stored_at`,
		rec.Key,
		rec.SessionID,
		string(rec.Payload),
		rec.StoredAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", rec.Key, err)
	}
	return nil
}

// Get returns the record stored under key.
func (s *Store) Get(ctx context.Context, key string) (model.PendingRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, session_id, payload, stored_at FROM pending_logs WHERE key = ?`, key)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PendingRecord{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return rec, err
}

// Delete removes the record under key only if it still belongs to sessionID.
// An empty sessionID removes it unconditionally. It reports whether a row
// was removed.
func (s *Store) Delete(ctx context.Context, key, sessionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_logs WHERE key = ? AND (? = '' OR session_id = ?)`,
		key, sessionID, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns all pending records, oldest first.
func (s *Store) List(ctx context.Context) ([]model.PendingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, session_id, payload, stored_at FROM pending_logs ORDER BY stored_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.PendingRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Clear removes every pending record and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_logs`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear pending logs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.PendingRecord, error) {
	var rec model.PendingRecord
	var payload, storedAt string
	if err := row.Scan(&rec.Key, &rec.SessionID, &payload, &storedAt); err != nil {
		return model.PendingRecord{}, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, storedAt)
	if err != nil {
		return model.PendingRecord{}, err
	}
	rec.Payload = []byte(payload)
	rec.StoredAt = parsed
	return rec, nil
}
