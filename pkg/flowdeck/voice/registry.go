package voice

import (
	"errors"
	"sync"
)

// ErrCallInProgress is returned when a user already has a live call.
var ErrCallInProgress = errors.New("a call is already in progress")

// ErrNoActiveCall is returned when there is no live call to act on.
var ErrNoActiveCall = errors.New("no active call")

// Registry holds the live sessions, at most one per user.
type Registry struct {
	mu     sync.Mutex
	byUser map[string]*Session
	byCall map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]*Session),
		byCall: make(map[string]*Session),
	}
}

// Reserve claims the user's slot before a call is placed, so two concurrent
// runs cannot both dial. The returned release must be called if the call
// is not started.
func (r *Registry) Reserve(userID string) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.byUser[userID]; busy {
		return nil, ErrCallInProgress
	}
	placeholder := &Session{UserID: userID, state: StateStarting}
	r.byUser[userID] = placeholder

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.byUser[userID] == placeholder {
			delete(r.byUser, userID)
		}
	}, nil
}

// Add registers a started session, replacing the user's reservation.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[s.UserID] = s
	r.byCall[s.CallID] = s
}

// Active returns the user's live session.
func (r *Registry) Active(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byUser[userID]
	if !ok || s.CallID == "" {
		return nil, false
	}
	return s, true
}

// ByCall returns the session for a provider call id.
func (r *Registry) ByCall(callID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byCall[callID]
	return s, ok
}

// Remove drops the session.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byUser[s.UserID] == s {
		delete(r.byUser, s.UserID)
	}
	delete(r.byCall, s.CallID)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byCall)
}
