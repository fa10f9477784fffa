package auth

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paysign/signoff/internal/domain/entity"
	"github.com/paysign/signoff/internal/join"
	"github.com/paysign/signoff/internal/view"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session ids
	ErrSessionNotFound = errors.New("session not found")
	// ErrActionInFlight is returned when a session already has a workflow
	// action running; actions are strictly serialized per session.
	ErrActionInFlight = errors.New("another action is still in flight")
)

// Session carries one logged-in user's server-side state: the immutable
// view state, the last fetched dataset, and the in-flight action gate.
type Session struct {
	ID       string
	Employee *entity.Employee

	busy atomic.Bool

	mu       sync.Mutex
	state    view.State
	dataset  *join.Dataset
	lastSeen time.Time
}

// BeginAction claims the session's action slot. Callers must pair it with
// EndAction.
func (s *Session) BeginAction() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrActionInFlight
	}
	return nil
}

// EndAction releases the action slot
func (s *Session) EndAction() {
	s.busy.Store(false)
}

// State returns the current view state
func (s *Session) State() view.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UpdateState applies a state transition and returns the new state
func (s *Session) UpdateState(fn func(view.State) view.State) view.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fn(s.state)
	return s.state
}

// Dataset returns the last fetched dataset, nil before the first fetch
func (s *Session) Dataset() *join.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataset
}

// SetDataset replaces the session's dataset after a fetch or refetch
func (s *Session) SetDataset(dataset *join.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset = dataset
}

// Registry holds live sessions keyed by session id
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry creates a session registry; sessions idle longer than ttl are
// dropped by Sweep and rejected by Get.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Put registers a fresh session, replacing any previous one with the same id
func (r *Registry) Put(id string, employee *entity.Employee) *Session {
	session := &Session{
		ID:       id,
		Employee: employee,
		state:    view.NewState(),
		lastSeen: r.now(),
	}

	r.mu.Lock()
	r.sessions[id] = session
	r.mu.Unlock()
	return session
}

// Get returns the session for an id, refreshing its idle timer
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	session.mu.Lock()
	expired := r.ttl > 0 && r.now().Sub(session.lastSeen) > r.ttl
	if !expired {
		session.lastSeen = r.now()
	}
	session.mu.Unlock()

	if expired {
		r.Delete(id)
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete removes a session, ending it
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Sweep drops idle sessions and returns how many were removed
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, session := range r.sessions {
		session.mu.Lock()
		idle := session.lastSeen.Before(cutoff)
		session.mu.Unlock()
		if idle {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}
