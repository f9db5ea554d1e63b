package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteSink writes events to a local SQLite file.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and its table.
func OpenSQLite(ctx context.Context, path string) (*SQLiteSink, error) {
	if path == "" || !validSQLitePath(path) {
		return nil, fmt.Errorf("%w: sqlite path %q", ErrUnsupportedURL, path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteSink{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteSink) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS audit_log (
		id              TEXT PRIMARY KEY,
		at              TEXT NOT NULL,
		name            TEXT NOT NULL,
		session_id      TEXT NOT NULL,
		plan            TEXT NOT NULL DEFAULT '',
		outcome         TEXT NOT NULL DEFAULT '',
		key_fingerprint TEXT NOT NULL DEFAULT '',
		detail          TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_at ON audit_log(at DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_log_session ON audit_log(session_id);
	`)
	return err
}

// Record inserts e.
func (s *SQLiteSink) Record(ctx context.Context, e Event) error {
	if s == nil || s.db == nil {
		return errors.New("audit: nil sqlite sink")
	}
	detail, err := encodeDetail(e.Detail)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, at, name, session_id, plan, outcome, key_fingerprint, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.At.UTC().Format(timeLayout), e.Name, e.SessionID, e.Plan, e.Outcome, e.KeyFingerprint, detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List returns up to limit events, newest first.
func (s *SQLiteSink) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, name, session_id, plan, outcome, key_fingerprint, detail
		 FROM audit_log ORDER BY at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e      Event
			at     string
			detail sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &e.Name, &e.SessionID, &e.Plan, &e.Outcome, &e.KeyFingerprint, &detail); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(timeLayout, at)
		if detail.Valid {
			if e.Detail, err = decodeDetail([]byte(detail.String)); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Ping checks the database handle.
func (s *SQLiteSink) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database.
func (s *SQLiteSink) Close() error { return s.db.Close() }

func encodeDetail(d map[string]any) (any, error) {
	if len(d) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode detail: %w", err)
	}
	return string(b), nil
}

func decodeDetail(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var d map[string]any
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode detail: %w", err)
	}
	return d, nil
}
