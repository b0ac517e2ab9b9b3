package seatlock

import (
	"sort"
	"sync"
	"time"
)

// Session is the bookkeeping kept for one live realtime connection.
type Session struct {
	ID          string
	UserID      string
	ShowtimeID  string // joined room, empty when none
	ConnectedAt time.Time

	held map[string]struct{}
	sub  Subscriber
}

// SessionTracker maps sessions to the room they joined and the seats they
// hold.  It applies no business rules; the Coordinator decides when to call
// it.
type SessionTracker struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionTracker returns an empty tracker.
func NewSessionTracker() *SessionTracker {
	return &SessionTracker{sessions: make(map[string]*Session)}
}

// Open registers a connected session.  sub receives the room's events once
// the session joins a showtime.
func (t *SessionTracker) Open(sessionID, userID string, sub Subscriber, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[sessionID] = &Session{
		ID:          sessionID,
		UserID:      userID,
		ConnectedAt: now,
		held:        make(map[string]struct{}),
		sub:         sub,
	}
}

// Close forgets a session entirely.
func (t *SessionTracker) Close(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}

// Join records the room a session is viewing.  It reports false when the
// session is unknown.
func (t *SessionTracker) Join(sessionID, showtimeID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[sessionID]
	if !ok {
		return false
	}
	s.ShowtimeID = showtimeID
	return true
}

// Leave clears the session's room and held seats and returns the room it was
// in.
func (t *SessionTracker) Leave(sessionID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[sessionID]
	if !ok {
		return ""
	}
	room := s.ShowtimeID
	s.ShowtimeID = ""
	s.held = make(map[string]struct{})
	return room
}

// RecordHold notes that the session holds seatID.
func (t *SessionTracker) RecordHold(sessionID, seatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[sessionID]; ok {
		s.held[seatID] = struct{}{}
	}
}

// RecordRelease notes that the session no longer holds seatID.
func (t *SessionTracker) RecordRelease(sessionID, seatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[sessionID]; ok {
		delete(s.held, seatID)
	}
}

// Room returns the showtime the session has joined.
func (t *SessionTracker) Room(sessionID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[sessionID]
	if !ok || s.ShowtimeID == "" {
		return "", false
	}
	return s.ShowtimeID, true
}

// Held returns the seats the session holds, sorted.
func (t *SessionTracker) Held(sessionID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(s.held))
	for id := range s.held {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// UserID returns the identified caller behind a session.
func (t *SessionTracker) UserID(sessionID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[sessionID]
	if !ok {
		return "", false
	}
	return s.UserID, true
}

// Len returns the number of open sessions.
func (t *SessionTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

func (t *SessionTracker) subscriber(sessionID string) (Subscriber, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[sessionID]
	if !ok || s.sub == nil {
		return nil, false
	}
	return s.sub, true
}
