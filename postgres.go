package cookiesession

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgreSQLStore records revocations in a PostgreSQL table.
type PostgreSQLStore struct {
	db          *sql.DB
	revokeStmt  *sql.Stmt
	lookupStmt  *sql.Stmt
	cleanupStmt *sql.Stmt
}

// PostgreSQLConfig holds configuration for the PostgreSQL store.
type PostgreSQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// NewPostgreSQLStore creates a new PostgreSQL store with default configuration.
func NewPostgreSQLStore(dsn string) (*PostgreSQLStore, error) {
	return NewPostgreSQLStoreWithConfig(PostgreSQLConfig{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	})
}

// NewPostgreSQLStoreWithConfig creates a new PostgreSQL store with custom configuration.
func NewPostgreSQLStoreWithConfig(cfg PostgreSQLConfig) (*PostgreSQLStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgresql database: %w", err)
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
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgresql database: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS revoked_sessions (
		id TEXT PRIMARY KEY,
		revoked_at TIMESTAMP WITH TIME ZONE NOT NULL,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_revoked_expires_at ON revoked_sessions(expires_at);
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create revoked_sessions table: %w", err)
	}

	store := &PostgreSQLStore{db: db}

	store.revokeStmt, err = db.Prepare(`
		INSERT INTO revoked_sessions (id, revoked_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT(id) DO UPDATE SET
			expires_at = EXCLUDED.expires_at
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare revoke statement: %w", err)
	}

	store.lookupStmt, err = db.Prepare("SELECT 1 FROM revoked_sessions WHERE id = $1 AND expires_at > $2")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to prepare lookup statement: %w", err)
	}

	store.cleanupStmt, err = db.Prepare("DELETE FROM revoked_sessions WHERE expires_at < $1")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	return store, nil
}

func (s *PostgreSQLStore) Revoke(ctx context.Context, id string, expiresAt time.Time) error {
	now := time.Now()
	if !expiresAt.After(now) {
		return nil // Already expired
	}
	if _, err := s.revokeStmt.ExecContext(ctx, id, now, expiresAt); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.lookupStmt.QueryRowContext(ctx, id, time.Now()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query revocation: %w", err)
	}
	return true, nil
}

func (s *PostgreSQLStore) Cleanup(ctx context.Context) error {
	if _, err := s.cleanupStmt.ExecContext(ctx, time.Now()); err != nil {
		return fmt.Errorf("failed to cleanup expired revocations: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) Close() error {
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
