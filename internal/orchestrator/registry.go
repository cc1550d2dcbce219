package orchestrator

import (
	"context"
	"log"
	"sync"

	"github.com/parleyhq/parley/internal/bot"
	"github.com/parleyhq/parley/internal/chatmode"
	"github.com/parleyhq/parley/internal/socket"
)

// SessionRegistry keeps at most one live orchestrator per session id. It is
// explicitly constructed and injected rather than process-global.
type SessionRegistry struct {
	sock *socket.Registry

	mu            sync.Mutex
	orchestrators map[string]*Orchestrator
}

// NewSessionRegistry builds an empty registry over the connection registry.
func NewSessionRegistry(sock *socket.Registry) *SessionRegistry {
	return &SessionRegistry{
		sock:          sock,
		orchestrators: make(map[string]*Orchestrator),
	}
}

// Create stands up and initializes an orchestrator for the session,
// destroying and replacing any pre-existing one for the same id.
func (r *SessionRegistry) Create(ctx context.Context, sessionID string, bots []*bot.Bot, modeID string) (*Orchestrator, error) {
	mode, err := chatmode.New(modeID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.orchestrators[sessionID]; ok {
		log.Printf("[orchestrator] replacing existing orchestrator session=%s", sessionID)
		existing.Destroy()
		delete(r.orchestrators, sessionID)
	}

	o := New(sessionID, bots, mode, r.sock)
	if err := o.Initialize(ctx); err != nil {
		return nil, err
	}

	r.orchestrators[sessionID] = o
	return o, nil
}

// Get returns the live orchestrator for a session, if any.
func (r *SessionRegistry) Get(sessionID string) (*Orchestrator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orchestrators[sessionID]
	return o, ok
}

// Remove destroys and forgets the session's orchestrator. Reports whether one
// existed.
func (r *SessionRegistry) Remove(sessionID string) bool {
	r.mu.Lock()
	o, ok := r.orchestrators[sessionID]
	delete(r.orchestrators, sessionID)
	r.mu.Unlock()

	if ok {
		o.Destroy()
	}
	return ok
}

// ActiveSessions lists the session ids with a live orchestrator.
func (r *SessionRegistry) ActiveSessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.orchestrators))
	for id := range r.orchestrators {
		ids = append(ids, id)
	}
	return ids
}

// Clear destroys every orchestrator. Used on shutdown and in tests.
func (r *SessionRegistry) Clear() {
	r.mu.Lock()
	orchestrators := r.orchestrators
	r.orchestrators = make(map[string]*Orchestrator)
	r.mu.Unlock()

	for _, o := range orchestrators {
		o.Destroy()
	}
	log.Printf("[orchestrator] cleared %d orchestrators", len(orchestrators))
}
