package ws

import (
	"errors"
	"sort"
	"sync"
)

var ErrSessionExists = errors.New("session already registered")

// Registry maps user identities to their live sessions. It is the only
// shared mutable state on the server side; every access goes through
// the mutex so register/unregister and resolve-then-push sequences
// never interleave on the same user's session set.
type Registry struct {
	mu     sync.RWMutex
	byUser map[int]map[string]*Session
	byID   map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[int]map[string]*Session),
		byID:   make(map[string]*Session),
	}
}

// Register adds the session under its owning user. Registering the same
// session id twice is an error with no side effect. It reports whether
// the user transitioned from absent to present.
func (r *Registry) Register(s *Session) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[s.ID]; ok {
		return false, ErrSessionExists
	}

	sessions, ok := r.byUser[s.UserID]
	if !ok {
		sessions = make(map[string]*Session)
		r.byUser[s.UserID] = sessions
	}
	sessions[s.ID] = s
	r.byID[s.ID] = s
	return len(sessions) == 1, nil
}

// Unregister removes the session from whichever user owns it. Unknown
// ids are ignored (userID 0): abrupt disconnects may clean a session up
// more than once. It reports the owning user and whether that user went
// offline.
func (r *Registry) Unregister(sessionID string) (userID int, wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[sessionID]
	if !ok {
		return 0, false
	}
	delete(r.byID, sessionID)

	sessions := r.byUser[s.UserID]
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(r.byUser, s.UserID)
		return s.UserID, true
	}
	return s.UserID, false
}

// SessionsFor returns the user's live sessions. An empty result means
// the user is simply unreachable, never an error.
func (r *Registry) SessionsFor(userID int) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.byUser[userID]))
	for _, s := range r.byUser[userID] {
		sessions = append(sessions, s)
	}
	return sessions
}

// IsOnline reports whether the user has at least one open session.
func (r *Registry) IsOnline(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// OnlineUserIDs returns the current presence snapshot, sorted for
// stable output.
func (r *Registry) OnlineUserIDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.byUser))
	for id := range r.byUser {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Sessions returns every live session across all users.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	return sessions
}
