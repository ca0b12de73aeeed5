package infrastructure

import (
	"sync"
	"time"
)

// ChatSession tracks one remote chat (a phone number or Telegram chat id)
// inside one tenant.
type ChatSession struct {
	Key       string
	RequestID string // open request this chat writes to, "" if none known
	LastSeen  time.Time
	LastClick time.Time

	// serializes intake for the chat so a burst of messages cannot open two requests
	turn sync.Mutex
	mu   sync.Mutex
}

// SessionManager manages chat sessions for all bridges.
type SessionManager struct {
	sessions map[string]*ChatSession
	mu       sync.Mutex
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*ChatSession),
	}
}

// SessionKey scopes a chat to its tenant and platform.
func SessionKey(tenantID, platform, from string) string {
	return tenantID + "/" + platform + "/" + from
}

// GetOrCreateSession returns or creates a chat session
func (sm *SessionManager) GetOrCreateSession(key string) *ChatSession {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[key]
	if !exists {
		session = &ChatSession{Key: key}
		sm.sessions[key] = session
	}
	session.mu.Lock()
	session.LastSeen = time.Now()
	session.mu.Unlock()
	return session
}

// Sweep drops sessions idle for longer than maxIdle and returns how many were removed.
func (sm *SessionManager) Sweep(maxIdle time.Duration) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	removed := 0
	now := time.Now()
	for key, s := range sm.sessions {
		s.mu.Lock()
		idle := now.Sub(s.LastSeen) > maxIdle
		s.mu.Unlock()
		if idle {
			delete(sm.sessions, key)
			removed++
		}
	}
	return removed
}

func (sm *SessionManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// Begin blocks until no other message of this chat is being processed.
func (s *ChatSession) Begin() { s.turn.Lock() }

func (s *ChatSession) End() { s.turn.Unlock() }

func (s *ChatSession) CurrentRequest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.RequestID
}

func (s *ChatSession) SetRequest(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RequestID = id
}

// IsAllowedClick debounces inline-button presses.
// Returns true if allowed, false if spam/duplicate
func (s *ChatSession) IsAllowedClick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.LastClick) < 2*time.Second {
		return false
	}
	s.LastClick = time.Now()
	return true
}
