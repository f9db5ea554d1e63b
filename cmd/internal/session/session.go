package session

import (
	"strings"
	"sync"
	"time"

	"listinggen/cmd/internal/access"
)

// Session is the state owned by one visitor.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	lastSeen     time.Time
	license      access.License
	usage        access.Usage
	history      []Record
	last         []string
	byokKey      string
	inFlight     bool
	admittedAt   time.Time
	historyLimit int
}

// View is a consistent copy of the fields clients may see.
type View struct {
	ID         string
	License    access.License
	Usage      access.Usage
	HasBYOKKey bool
	HasBatch   bool
	Generating bool
	History    int
}

func newSession(id string, now time.Time, historyLimit int) *Session {
	return &Session{
		ID:           id,
		CreatedAt:    now,
		lastSeen:     now,
		historyLimit: historyLimit,
	}
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return View{
		ID:         s.ID,
		License:    s.license,
		Usage:      s.usage,
		HasBYOKKey: s.byokKey != "",
		HasBatch:   len(s.last) > 0,
		Generating: s.inFlight,
		History:    len(s.history),
	}
}

// License returns the session's license.
func (s *Session) License() access.License {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.license
}

// Grant unlocks the session. A licensed session is never changed; Grant
// then returns false. An admin license sets the usage bypass.
func (s *Session) Grant(l access.License) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.license.Licensed || !l.Licensed {
		return false
	}
	s.license = l
	if l.Bypass() {
		s.usage.Bypass = true
	}
	return true
}

// SetBYOKKey stores the visitor's own generation key.
func (s *Session) SetBYOKKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byokKey = strings.TrimSpace(key)
}

// BYOKKey returns the visitor's own generation key ("" when unset).
func (s *Session) BYOKKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byokKey
}

// Begin runs admission and, when admitted, marks a generation in flight.
// Every admitted Begin must be paired with Finish.
func (s *Session) Begin(p access.Policy, now time.Time) (access.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return access.Decision{}, ErrGenerationInProgress
	}
	d := p.Admit(&s.usage, now)
	if d.Admitted() {
		s.inFlight = true
		s.admittedAt = now
	}
	return d, nil
}

// Finish clears the in-flight mark. A record with at least one variant
// consumes quota, joins the history and becomes the downloadable batch.
// The cooldown runs from the admission time recorded by Begin, not from now.
// A nil or empty record leaves usage untouched.
func (s *Session) Finish(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight = false
	admitted := s.admittedAt
	s.admittedAt = time.Time{}
	if rec == nil || len(rec.Variants) == 0 {
		return
	}

	access.RecordSuccess(&s.usage, admitted)
	s.history = appendCapped(s.history, *rec, s.historyLimit)
	s.last = append([]string(nil), rec.Variants...)
}

// Usage returns a copy of the usage counters.
func (s *Session) Usage() access.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// Recent returns up to n records, newest first.
func (s *Session) Recent(n int) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > len(s.history) {
		n = len(s.history)
	}
	out := make([]Record, 0, n)
	for i := len(s.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.history[i])
	}
	return out
}

// LastBatch returns the variants of the most recent successful batch.
func (s *Session) LastBatch() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.last...)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
