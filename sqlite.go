package cookiesession

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore records revocations in an SQLite database.
type SQLiteStore struct {
	db          *sql.DB
	mu          sync.Mutex // Serializes writes to avoid SQLITE_BUSY
	revokeStmt  *sql.Stmt
	lookupStmt  *sql.Stmt
	cleanupStmt *sql.Stmt
}

// SQLiteConfig holds configuration for the SQLite store.
type SQLiteConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteConfig{
		DSN:          dsn,
		MaxOpenConns: 16, // Allow concurrent readers (writers are serialized by mutex)
		MaxIdleConns: 16,
	})
}

func NewSQLiteStoreWithConfig(cfg SQLiteConfig) (*SQLiteStore, error) {
	// PRAGMAs go into the DSN so they apply to every connection in the pool.
	cfg.DSN = withPragma(cfg.DSN, "synchronous", "synchronous=NORMAL")
	cfg.DSN = withPragma(cfg.DSN, "busy_timeout", "busy_timeout=5000")

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS revoked_sessions (
		id TEXT PRIMARY KEY,
		revoked_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_revoked_expires_at ON revoked_sessions(expires_at);
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create revoked_sessions table: %w", err)
	}

	store := &SQLiteStore{db: db}

	store.revokeStmt, err = db.Prepare(`
		INSERT INTO revoked_sessions (id, revoked_at, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			expires_at = excluded.expires_at
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare revoke statement: %w", err)
	}

	store.lookupStmt, err = db.Prepare("SELECT 1 FROM revoked_sessions WHERE id = ? AND expires_at > ?")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to prepare lookup statement: %w", err)
	}

	store.cleanupStmt, err = db.Prepare("DELETE FROM revoked_sessions WHERE expires_at < ?")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	return store, nil
}

func withPragma(dsn, name, pragma string) string {
	if strings.Contains(dsn, name) {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + "_pragma=" + pragma
}

func (s *SQLiteStore) Revoke(ctx context.Context, id string, expiresAt time.Time) error {
	now := time.Now()
	if !expiresAt.After(now) {
		return nil // Already expired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.revokeStmt.ExecContext(ctx, id, now.UTC(), expiresAt.UTC()); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.lookupStmt.QueryRowContext(ctx, id, time.Now().UTC()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query revocation: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.cleanupStmt.ExecContext(ctx, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to cleanup expired revocations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.revokeStmt != nil {
		s.revokeStmt.Close()
	}
	if s.lookupStmt != nil {
		s.lookupStmt.Close()
	}
	if s.cleanupStmt != nil {
		s.cleanupStmt.Close()
	}
	return s.db.Close()
}
