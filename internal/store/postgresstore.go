package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/antman-dev/oauth-precommit/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const defaultTokenTable = "token_store"

// PostgresMirror copies the token record into a JSONB row keyed by application.
type PostgresMirror struct {
	db  *sql.DB
	cfg config.PostgresMirrorConfig
}

// NewPostgresMirror connects, pings and ensures the schema exists.
func NewPostgresMirror(ctx context.Context, cfg config.PostgresMirrorConfig) (*PostgresMirror, error) {
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres mirror: DSN is required")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		cfg.Table = defaultTokenTable
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres mirror: open database connection: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres mirror: ping database: %w", err)
	}

	m := &PostgresMirror{db: db, cfg: cfg}
	if err = m.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

// Name identifies the mirror in logs.
func (m *PostgresMirror) Name() string { return "postgres" }

// Close releases the underlying database connection.
func (m *PostgresMirror) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

// EnsureSchema creates the token table (and schema when provided).
func (m *PostgresMirror) EnsureSchema(ctx context.Context) error {
	if schema := strings.TrimSpace(m.cfg.Schema); schema != "" {
		query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdentifier(schema))
		if _, err := m.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("postgres mirror: create schema: %w", err)
		}
	}
	if _, err := m.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, m.fullTableName())); err != nil {
		return fmt.Errorf("postgres mirror: create token table: %w", err)
	}
	return nil
}

// Push upserts the record under key.
func (m *PostgresMirror) Push(ctx context.Context, key string, data []byte) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (id)
		DO UPDATE SET content = EXCLUDED.content, updated_at = NOW()
	`, m.fullTableName())
	if _, err := m.db.ExecContext(ctx, query, key, json.RawMessage(data)); err != nil {
		return fmt.Errorf("postgres mirror: upsert token record: %w", err)
	}
	return nil
}

// Pull returns the record stored under key, or nil when there is none.
func (m *PostgresMirror) Pull(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf("SELECT content FROM %s WHERE id = $1", m.fullTableName())
	var content []byte
	err := m.db.QueryRowContext(ctx, query, key).Scan(&content)
	switch {
	case err == nil:
		return content, nil
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	default:
		return nil, fmt.Errorf("postgres mirror: read token record: %w", err)
	}
}

// Remove deletes the record stored under key.
func (m *PostgresMirror) Remove(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", m.fullTableName())
	if _, err := m.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("postgres mirror: delete token record: %w", err)
	}
	return nil
}

func (m *PostgresMirror) fullTableName() string {
	if strings.TrimSpace(m.cfg.Schema) == "" {
		return quoteIdentifier(m.cfg.Table)
	}
	return quoteIdentifier(m.cfg.Schema) + "." + quoteIdentifier(m.cfg.Table)
}

func quoteIdentifier(identifier string) string {
	replaced := strings.ReplaceAll(identifier, "\"", "\"\"")
	return "\"" + replaced + "\""
}
