package annotation

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/lewtec/sinalizador/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const sessionKey contextKey = "session"

// SessionCookie is the cookie holding the session id
const SessionCookie = "sinalizador_session"

// Session is a logged in reviewer. It mirrors the annotations of the folder
// images so pages can be rendered without going back to the store.
type Session struct {
	ID    string
	Email string
	Name  string

	mu          sync.RWMutex
	annotations map[string]domain.ImageAnnotation
}

// Annotations returns a copy of the mirror
func (s *Session) Annotations() map[string]domain.ImageAnnotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make(map[string]domain.ImageAnnotation, len(s.annotations))
	for image, annotation := range s.annotations {
		ret[image] = annotation.Clone()
	}
	return ret
}

// SetAnnotation replaces the mirrored entry of one image
func (s *Session) SetAnnotation(image string, annotation domain.ImageAnnotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.annotations == nil {
		s.annotations = map[string]domain.ImageAnnotation{}
	}
	s.annotations[image] = annotation
}

// ReplaceAnnotations swaps the whole mirror
func (s *Session) ReplaceAnnotations(annotations map[string]domain.ImageAnnotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.annotations = annotations
}

// SessionStore keeps sessions in memory. They are lost on restart, the
// annotations themselves are not.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: map[string]*Session{}}
}

func (ss *SessionStore) Create(email, name string) *Session {
	session := &Session{
		ID:          uuid.NewString(),
		Email:       email,
		Name:        name,
		annotations: map[string]domain.ImageAnnotation{},
	}
	ss.mu.Lock()
	ss.sessions[session.ID] = session
	ss.mu.Unlock()
	return session
}

func (ss *SessionStore) Get(id string) (*Session, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	session, ok := ss.sessions[id]
	return session, ok
}

func (ss *SessionStore) Delete(id string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, id)
}

// WithSession adds a session to the context
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// GetSession retrieves the session from context, nil when not logged in
func GetSession(ctx context.Context) *Session {
	if session, ok := ctx.Value(sessionKey).(*Session); ok {
		return session
	}
	return nil
}

// sessionMiddleware resolves the session cookie once per request
func sessionMiddleware(sessions *SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err == nil {
				if session, ok := sessions.Get(cookie.Value); ok {
					r = r.WithContext(WithSession(r.Context(), session))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
