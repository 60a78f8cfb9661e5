// Package session holds per-browser state between interactions: the
// authentication stage, the OAuth token, and the sticky report
// parameters the user last chose.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/FranksOps/quern/internal/auth"
)

// ReportState carries user-chosen report parameters from one render to
// the next, and is what the export endpoint re-runs.
type ReportState struct {
	Property       string `json:"property"`
	DateRange      string `json:"date_range"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	Device         string `json:"device"`
	Metric         string `json:"metric"`
	BrandTerms     string `json:"brand_terms"`
	DropZeroClicks bool   `json:"drop_zero_clicks"`
}

// Session is one browser's server-side state.
type Session struct {
	ID        string
	Stage     auth.Stage
	CSRFState string
	Token     *oauth2.Token
	Report    ReportState
	CreatedAt time.Time
	LastSeen  time.Time
}

// Store is an in-memory, TTL-bounded session store. Mutation goes
// through Update so concurrent requests on one session stay consistent.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewStore creates a store whose sessions expire ttl after last use.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create registers a fresh anonymous session and returns a snapshot.
func (s *Store) Create() Session {
	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		Stage:     auth.StageAnonymous,
		CreatedAt: now,
		LastSeen:  now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return *sess
}

// Get returns a snapshot of the session and refreshes its LastSeen.
// Expired sessions are removed and reported as missing.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	if time.Since(sess.LastSeen) > s.ttl {
		delete(s.sessions, id)
		return Session{}, false
	}

	sess.LastSeen = time.Now()
	return *sess, true
}

// Update applies fn to the live session under the store lock.
func (s *Store) Update(id string, fn func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	fn(sess)
	return true
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle past the TTL and returns how many went.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastSeen) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Janitor sweeps expired sessions at the given interval until the
// context is canceled.
func (s *Store) Janitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}
