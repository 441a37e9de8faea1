// Package chat manages conversation sessions and orchestrates RAG responses.
package chat

import (
	"sync"
	"time"

	"github.com/hyperjump/seisan/internal/models"
)

// DefaultSessionID is used when a request does not name a session.
const DefaultSessionID = "default"

// Session is one conversation's state.
type Session struct {
	ID                 string
	Messages           []models.ChatMessage
	LastQuery          string
	RetrievedDocuments []models.ContextItem
	LastActivity       time.Time
}

// SessionStore holds chat sessions in memory. Sessions grow unbounded by
// default; configure a TTL to evict idle sessions.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionStore creates a session store. ttl 0 disables eviction.
func NewSessionStore(ttl time.Duration) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	if ttl > 0 {
		go s.sweep()
	}
	return s
}

func (s *SessionStore) sweep() {
	interval := s.ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.ttl)
			s.mu.Lock()
			for id, sess := range s.sessions {
				if sess.LastActivity.Before(cutoff) {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// GetOrCreate returns the session with the given id, creating it if absent.
func (s *SessionStore) GetOrCreate(id string) *Session {
	if id == "" {
		id = DefaultSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{ID: id, LastActivity: time.Now()}
		s.sessions[id] = sess
	}
	return sess
}

// Append adds a message to the session's history.
func (s *SessionStore) Append(id string, msg models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{ID: id}
		s.sessions[id] = sess
	}
	sess.Messages = append(sess.Messages, msg)
	sess.LastActivity = time.Now()
}

// UpdateContext records the latest query and its retrieved documents.
func (s *SessionStore) UpdateContext(id, query string, docs []models.ContextItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.LastQuery = query
		sess.RetrievedDocuments = docs
	}
}

// History returns a copy of the session's messages and its last query.
// An unknown session yields an empty history, not an error.
func (s *SessionStore) History(id string) ([]models.ChatMessage, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return []models.ChatMessage{}, ""
	}
	out := make([]models.ChatMessage, len(sess.Messages))
	copy(out, sess.Messages)
	return out, sess.LastQuery
}

// Clear removes a session. Returns false when the session did not exist.
func (s *SessionStore) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// ListActive returns the ids of all live sessions.
func (s *SessionStore) ListActive() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Close stops the eviction sweeper.
func (s *SessionStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}
