package audit

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink writes events to <schema>.audit_log.
//
// The sink does NOT own the pool; Close is a no-op.
type PostgresSink struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresSink.
type PostgresOption func(*PostgresSink) error

// WithSchema sets the schema (default "listinggen").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresSink) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRE.MatchString(schema) {
			return errors.New("audit: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresSink constructs a sink on pool.
func NewPostgresSink(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresSink, error) {
	s := &PostgresSink{pool: pool, schema: "listinggen"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.pool == nil {
		return nil, errors.New("audit: nil pool")
	}
	return s, nil
}

// EnsureSchema creates the schema and table when missing.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %s;
CREATE TABLE IF NOT EXISTS %s (
  id              TEXT PRIMARY KEY,
  at              TIMESTAMPTZ NOT NULL,
  name            TEXT NOT NULL,
  session_id      TEXT NOT NULL,
  plan            TEXT NOT NULL DEFAULT '',
  outcome         TEXT NOT NULL DEFAULT '',
  key_fingerprint TEXT NOT NULL DEFAULT '',
  detail          JSONB
);
CREATE INDEX IF NOT EXISTS audit_log_at_idx ON %s (at DESC);
`, pgx.Identifier{s.schema}.Sanitize(), s.table(), s.table())

	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

// Record inserts e.
func (s *PostgresSink) Record(ctx context.Context, e Event) error {
	if s == nil || s.pool == nil {
		return errors.New("audit: nil postgres sink")
	}

	var detail any
	if len(e.Detail) > 0 {
		detail = e.Detail
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (id, at, name, session_id, plan, outcome, key_fingerprint, detail)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.At.UTC(), e.Name, e.SessionID, e.Plan, e.Outcome, e.KeyFingerprint, detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List returns up to limit events, newest first.
func (s *PostgresSink) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, at, name, session_id, plan, outcome, key_fingerprint, detail
		 FROM `+s.table()+` ORDER BY at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var e Event
		err := row.Scan(&e.ID, &e.At, &e.Name, &e.SessionID, &e.Plan, &e.Outcome, &e.KeyFingerprint, &e.Detail)
		return e, err
	})
}

// Ping acquires a connection.
func (s *PostgresSink) Ping(ctx context.Context) error {
	c, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	c.Release()
	return nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresSink) Close() error { return nil }

func (s *PostgresSink) table() string {
	return pgx.Identifier{s.schema, "audit_log"}.Sanitize()
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
