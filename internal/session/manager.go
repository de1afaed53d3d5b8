package session

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	CookieName   = "agusto_session"
	cookieMaxAge = 24 * time.Hour
)

var idPattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

type contextKey int

const sessionKey contextKey = iota

// FromContext returns the session attached by Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// Manager keeps sessions in memory. Sessions are never shared between
// browsers; each cookie maps to exactly one Session.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns the session with id, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// GetOrCreate returns the session for id, creating a fresh one (with a new
// id) when id is unknown or malformed.
func (m *Manager) GetOrCreate(id string) (*Session, bool) {
	now := m.now()
	if idPattern.MatchString(id) {
		m.mu.RLock()
		s, ok := m.sessions[id]
		m.mu.RUnlock()
		if ok {
			s.touch(now)
			return s, false
		}
	}

	s := newSession(newID(), now)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, true
}

// Delete removes a session.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than ttl and returns how many were removed.
func (m *Manager) Sweep(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (m *Manager) StartSweeper(ctx context.Context, ttl, interval time.Duration) {
	if interval <= 0 {
		interval = ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(ttl); n > 0 {
				slog.Info("Swept idle sessions", "removed", n, "remaining", m.Len())
			}
		}
	}
}

// ManualOverride returns the manual token override of the request's session.
// It is meant to feed credential.MiddlewareOptions.Override.
func ManualOverride(r *http.Request) string {
	if s := FromContext(r.Context()); s != nil {
		return s.ManualToken()
	}
	return ""
}

// Middleware attaches the browser's session to the request, issuing a
// session cookie when none is present.
func (m *Manager) Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(CookieName); err == nil {
				id = c.Value
			}

			s, created := m.GetOrCreate(id)
			if created {
				slog.Debug("Session created", "session_id", s.ID)
			}
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    s.ID,
				Path:     "/",
				MaxAge:   int(cookieMaxAge.Seconds()),
				Expires:  time.Now().Add(cookieMaxAge),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   !isDev,
			})

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
