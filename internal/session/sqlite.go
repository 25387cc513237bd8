package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteStore keeps flags in the site database next to the visitors table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates the session_flags table if needed. The caller owns
// db; Close does not close it.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate session flags: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS session_flags (
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		set_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, name)
	);
	CREATE INDEX IF NOT EXISTS idx_session_flags_set_at ON session_flags(set_at);
	`)
	return err
}

func (s *SQLiteStore) GetFlag(ctx context.Context, sessionID, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_flags WHERE session_id = ? AND name = ?`,
		sessionID, name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("get flag %s: %w", name, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) SetFlag(ctx context.Context, sessionID, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_flags (session_id, name, set_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id, name) DO UPDATE SET set_at = excluded.set_at
	`, sessionID, name, s.now().Unix())
	if err != nil {
		return fmt.Errorf("set flag %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_flags WHERE set_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge session flags: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error { return nil }
