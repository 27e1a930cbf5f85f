// ABOUTME: In-memory store of console editing sessions with TTL cleanup and capacity limits.
// ABOUTME: Each session owns one configuration widget and logs the changes it observes.
package web

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389-research/pipeconf/widget"
)

// Session is one browser's editing session over one pipeline.
type Session struct {
	ID         string
	Pipeline   string
	Widget     *widget.Widget
	CreatedAt  time.Time
	LastAccess time.Time

	unsubscribe func()
}

// SessionStore holds console sessions keyed by UUID.
type SessionStore struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	maxSessions int
	ttl         time.Duration
	now         func() time.Time
}

// NewSessionStore creates a store that keeps at most maxSessions sessions and
// expires sessions idle for longer than ttl.
func NewSessionStore(maxSessions int, ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Create registers a session for the widget, evicting the least recently used
// session when the store is full.
func (s *SessionStore) Create(pipelineName string, w *widget.Widget) *Session {
	now := s.now()
	sess := &Session{
		ID:         uuid.New().String(),
		Pipeline:   pipelineName,
		Widget:     w,
		CreatedAt:  now,
		LastAccess: now,
	}
	sess.unsubscribe = w.Subscribe(func(c widget.Change) {
		if c.Err != nil {
			log.Printf("component=console action=change session=%s pipeline=%s kind=%s err=%v", sess.ID, pipelineName, c.Kind, c.Err)
			return
		}
		log.Printf("component=console action=change session=%s pipeline=%s kind=%s", sess.ID, pipelineName, c.Kind)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		var oldestID string
		var oldestTime time.Time
		for id, other := range s.sessions {
			if oldestTime.IsZero() || other.LastAccess.Before(oldestTime) {
				oldestID = id
				oldestTime = other.LastAccess
			}
		}
		s.removeLocked(oldestID)
	}
	s.sessions[sess.ID] = sess
	return sess
}

// Get retrieves a session and refreshes its LastAccess time.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.LastAccess = s.now()
	return sess, true
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup removes sessions idle for longer than the TTL.
func (s *SessionStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	for id, sess := range s.sessions {
		if sess.LastAccess.Before(cutoff) {
			s.removeLocked(id)
		}
	}
}

func (s *SessionStore) removeLocked(id string) {
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	if sess.unsubscribe != nil {
		sess.unsubscribe()
	}
	delete(s.sessions, id)
	log.Printf("component=console action=expire session=%s pipeline=%s", id, sess.Pipeline)
}

// StartCleanup runs Cleanup on every interval until the returned stop function is called.
func (s *SessionStore) StartCleanup(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				s.Cleanup()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
