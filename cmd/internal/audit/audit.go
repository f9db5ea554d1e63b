// Package audit records unlock and generation events.
//
// Events never carry raw license keys or API keys; callers pass a
// fingerprint from security/token instead. Sinks are best effort: a failed
// write is logged by the caller and never fails the user's request.
package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Event names.
const (
	UnlockOverride     = "license.unlock.override"
	UnlockVerified     = "license.unlock.verified"
	UnlockRejected     = "license.unlock.rejected"
	GenerationOK       = "generation.succeeded"
	GenerationPartial  = "generation.partial"
	GenerationNoOutput = "generation.no_output"
	GenerationRejected = "generation.rejected"
)

// ErrUnsupportedURL is returned by ParseURL for unknown schemes.
var ErrUnsupportedURL = errors.New("audit: unsupported database url")

// Event is one audit record.
type Event struct {
	ID             string         `json:"id"`
	At             time.Time      `json:"at"`
	Name           string         `json:"name"`
	SessionID      string         `json:"session_id"`
	Plan           string         `json:"plan,omitempty"`
	Outcome        string         `json:"outcome,omitempty"`
	KeyFingerprint string         `json:"key_fingerprint,omitempty"`
	Detail         map[string]any `json:"detail,omitempty"`
}

// Sink persists events.
type Sink interface {
	Record(ctx context.Context, e Event) error
	Close() error
}

// Lister is implemented by sinks that can read events back.
type Lister interface {
	List(ctx context.Context, limit int) ([]Event, error)
}

// Pinger is implemented by sinks backed by a database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Record(context.Context, Event) error { return nil }
func (NopSink) Close() error                        { return nil }

// MemorySink keeps events in memory. Useful for development and tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemorySink) Record(_ context.Context, e Event) error {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
	return nil
}

func (m *MemorySink) Close() error { return nil }

// List returns up to limit events, newest first.
func (m *MemorySink) List(_ context.Context, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}
	out := make([]Event, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

// Backend identifies a sink implementation.
type Backend int

const (
	BackendNone Backend = iota
	BackendPostgres
	BackendSQLite
)

// ParseURL maps LISTINGGEN_DATABASE_URL to a backend and its DSN.
//
//	""                         -> BackendNone
//	postgres://, postgresql:// -> BackendPostgres (DSN unchanged)
//	sqlite:<path>              -> BackendSQLite (DSN is the path; no '?' or '#')
func ParseURL(raw string) (Backend, string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return BackendNone, "", nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return BackendPostgres, raw, nil
	case strings.HasPrefix(raw, "sqlite:"):
		path := strings.TrimPrefix(strings.TrimPrefix(raw, "sqlite:"), "//")
		if path == "" || !validSQLitePath(path) {
			return BackendNone, "", ErrUnsupportedURL
		}
		return BackendSQLite, path, nil
	default:
		return BackendNone, "", ErrUnsupportedURL
	}
}

// validSQLitePath rejects paths the driver would split into file and options.
func validSQLitePath(path string) bool {
	return !strings.ContainsAny(path, "?#")
}
