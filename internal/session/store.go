package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	botmodel "github.com/parleyhq/parley/internal/model/bot"
)

// Store is an in-memory session document store. The connection token handed
// to clients is the opaque session id itself.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewStore bootstraps the in-memory store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]Session)}
}

// Create persists a new session document for the given owner.
func (s *Store) Create(_ context.Context, userID, modeID string, bots []botmodel.Snapshot) (Session, error) {
	if userID == "" {
		return Session{}, ErrUserRequired
	}
	if modeID == "" {
		return Session{}, ErrModeRequired
	}
	if len(bots) == 0 {
		return Session{}, ErrBotsRequired
	}

	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ModeID:    modeID,
		Bots:      bots,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess, nil
}

// Get retrieves a session by identifier.
func (s *Store) Get(_ context.Context, sessionID string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// Delete removes a session document. Deleting an unknown id is a no-op.
func (s *Store) Delete(_ context.Context, sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// FindSessionByToken implements Lookup: the token is the session id.
func (s *Store) FindSessionByToken(ctx context.Context, token string) (Session, error) {
	return s.Get(ctx, token)
}
