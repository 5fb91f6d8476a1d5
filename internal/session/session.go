package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnknownSession is returned for ids that were never issued or have expired
	ErrUnknownSession = errors.New("unknown session")
	// ErrBadSecret is returned when the admin secret does not match
	ErrBadSecret = errors.New("invalid admin secret")
)

// Session is one browser or console session. Admin access belongs to the
// session that logged in, never to the process.
type Session struct {
	ID            string
	Authenticated bool
	LastSeen      time.Time
}

// Manager issues sessions and checks the shared admin secret
type Manager struct {
	mu       sync.Mutex
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*Session
}

// NewManager creates a manager. A zero ttl keeps sessions until they end.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// SetClock replaces the time source
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Start opens a new unauthenticated session
func (m *Manager) Start() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Session{ID: uuid.NewString(), LastSeen: m.now()}
	m.sessions[s.ID] = s
	return *s
}

// Get returns a live session and refreshes its idle timer
func (m *Manager) Get(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(id)
	if err != nil {
		return Session{}, err
	}
	s.LastSeen = m.now()
	return *s, nil
}

// Login marks the session as admin when secret matches
func (m *Manager) Login(id, secret string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(id)
	if err != nil {
		return Session{}, err
	}
	if len(m.secret) == 0 || subtle.ConstantTimeCompare(m.secret, []byte(secret)) != 1 {
		return Session{}, ErrBadSecret
	}
	s.Authenticated = true
	s.LastSeen = m.now()
	return *s, nil
}

// Logout drops admin access but keeps the session
func (m *Manager) Logout(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Authenticated = false
	}
}

// End forgets the session
func (m *Manager) End(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Sweep removes expired sessions and returns how many were dropped
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// lookup expects m.mu held
func (m *Manager) lookup(id string) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	if m.expired(s) {
		delete(m.sessions, id)
		return nil, ErrUnknownSession
	}
	return s, nil
}

func (m *Manager) expired(s *Session) bool {
	return m.ttl > 0 && m.now().Sub(s.LastSeen) > m.ttl
}

type ctxKey struct{}

// WithSession attaches a session to ctx
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session carried by ctx, if any
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

// IsAdmin reports whether ctx carries an authenticated session
func IsAdmin(ctx context.Context) bool {
	s, ok := FromContext(ctx)
	return ok && s.Authenticated
}
