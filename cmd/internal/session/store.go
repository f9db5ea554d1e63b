package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"listinggen/cmd/internal/ids"
	"listinggen/cmd/security/token"
)

// Store keeps sessions in memory, keyed by token hash.
type Store struct {
	cfg    Config
	hasher token.Hasher

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore constructs an empty store.
func NewStore(cfg Config, hasher token.Hasher) *Store {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultConfig().IdleTTL
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultConfig().HistoryLimit
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	return &Store{
		cfg:      cfg,
		hasher:   hasher,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session and returns the raw token for the client.
func (st *Store) Create(now time.Time) (string, *Session, error) {
	raw, err := token.New()
	if err != nil {
		return "", nil, err
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return "", nil, err
	}

	s := newSession(id, now, st.cfg.HistoryLimit)

	st.mu.Lock()
	st.sessions[st.hasher.Hash(raw)] = s
	st.mu.Unlock()

	return raw, s, nil
}

// Get resolves a raw token and refreshes the session's idle timer.
func (st *Store) Get(raw string, now time.Time) (*Session, error) {
	if !token.Valid(raw) {
		return nil, ErrSessionNotFound
	}
	key := st.hasher.Hash(raw)

	st.mu.RLock()
	s := st.sessions[key]
	st.mu.RUnlock()

	if s == nil {
		return nil, ErrSessionNotFound
	}
	if now.Sub(s.idleSince()) > st.cfg.IdleTTL {
		st.mu.Lock()
		delete(st.sessions, key)
		st.mu.Unlock()
		return nil, ErrSessionExpired
	}

	s.touch(now)
	return s, nil
}

// Sweep removes sessions idle longer than the TTL and returns how many went.
func (st *Store) Sweep(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for k, s := range st.sessions {
		if now.Sub(s.idleSince()) > st.cfg.IdleTTL {
			delete(st.sessions, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Run sweeps on the configured interval until ctx is done. onSweep, when
// set, receives the live count after each pass.
func (st *Store) Run(ctx context.Context, log *slog.Logger, onSweep func(live int)) {
	t := time.NewTicker(st.cfg.SweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			removed := st.Sweep(now)
			live := st.Len()
			if removed > 0 && log != nil {
				log.Debug("session.sweep", "removed", removed, "live", live)
			}
			if onSweep != nil {
				onSweep(live)
			}
		}
	}
}
