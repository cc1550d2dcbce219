package socket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/model/chat"
	"github.com/parleyhq/parley/internal/session"
)

// DefaultMaxMessageLength bounds inbound message content, counted in
// characters after trimming.
const DefaultMaxMessageLength = 1000

// Admission errors. All of them refuse the connection; none are retried.
var (
	ErrSessionIDMissing = errors.New("SessionId missing")
	ErrSessionInvalid   = errors.New("Invalid sessionId")
	ErrAuthInternal     = errors.New("Authentication failed")
)

// Message validation errors. Reported to the originating connection only.
var (
	ErrContentRequired = errors.New("Message content is required")
	ErrMessageTooLong  = errors.New("Message too long")
)

type member struct {
	conn      Conn
	userID    string
	sessionID string
}

// Registry owns live connections. It authenticates them against the external
// session store, enforces at most one live connection per user, fans inbound
// messages into per-session streams and broadcasts outbound messages to every
// connection joined to a session.
type Registry struct {
	lookup session.Lookup
	maxLen int

	mu      sync.Mutex
	users   map[string]*member
	groups  map[string]map[*member]struct{}
	streams map[string]*Stream
}

// NewRegistry builds a registry bound to the given session lookup.
// maxMessageLength <= 0 selects DefaultMaxMessageLength.
func NewRegistry(lookup session.Lookup, maxMessageLength int) *Registry {
	if maxMessageLength <= 0 {
		maxMessageLength = DefaultMaxMessageLength
	}
	return &Registry{
		lookup:  lookup,
		maxLen:  maxMessageLength,
		users:   make(map[string]*member),
		groups:  make(map[string]map[*member]struct{}),
		streams: make(map[string]*Stream),
	}
}

// MaxMessageLength returns the configured content limit.
func (r *Registry) MaxMessageLength() int { return r.maxLen }

// Authenticate resolves a handshake token to the session it belongs to.
func (r *Registry) Authenticate(ctx context.Context, token string) (session.Session, error) {
	if strings.TrimSpace(token) == "" {
		return session.Session{}, ErrSessionIDMissing
	}

	sess, err := r.lookup.FindSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			log.Printf("[socket] rejected connection: unknown session token")
			return session.Session{}, ErrSessionInvalid
		}
		log.Printf("[socket] session lookup failed: %v", err)
		return session.Session{}, fmt.Errorf("%w: %v", ErrAuthInternal, err)
	}

	return sess, nil
}

// Admit records conn as the sole live connection of userID and joins it to
// the session's delivery group. Any prior connection of the same user is
// evicted first; the eviction completes before the new connection becomes
// visible, so two connections are never attributed to one user.
func (r *Registry) Admit(conn Conn, userID, sessionID string) {
	var evicted *member

	r.mu.Lock()
	if prior, ok := r.users[userID]; ok {
		r.leaveGroupLocked(prior)
		evicted = prior
	}

	m := &member{conn: conn, userID: userID, sessionID: sessionID}
	r.users[userID] = m

	group, ok := r.groups[sessionID]
	if !ok {
		group = make(map[*member]struct{})
		r.groups[sessionID] = group
	}
	group[m] = struct{}{}
	r.mu.Unlock()

	if evicted != nil {
		if err := evicted.conn.Close(); err != nil {
			log.Printf("[socket] error closing evicted connection user=%s: %v", userID, err)
		}
		log.Printf("[socket] evicted prior connection user=%s session=%s", userID, evicted.sessionID)
	}

	log.Printf("[socket] connection admitted user=%s session=%s", userID, sessionID)
}

// Disconnect removes conn if it is still the user's live connection. A stale
// call for an already-evicted connection is a no-op.
func (r *Registry) Disconnect(userID string, conn Conn) {
	r.mu.Lock()
	m, ok := r.users[userID]
	if !ok || m.conn != conn {
		r.mu.Unlock()
		return
	}
	delete(r.users, userID)
	r.leaveGroupLocked(m)
	r.mu.Unlock()

	log.Printf("[socket] connection closed user=%s session=%s", userID, m.sessionID)
}

func (r *Registry) leaveGroupLocked(m *member) {
	if group, ok := r.groups[m.sessionID]; ok {
		delete(group, m)
		if len(group) == 0 {
			delete(r.groups, m.sessionID)
		}
	}
}

// Publish validates inbound content from origin, echoes the resulting message
// to the session group and pushes it onto the session's inbound stream.
// Validation failures are reported to the originating connection only and
// nothing reaches the stream.
func (r *Registry) Publish(origin Conn, sessionID, content string) (chat.Message, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		r.sendError(origin, ErrContentRequired.Error())
		return chat.Message{}, ErrContentRequired
	}
	if utf8.RuneCountInString(trimmed) > r.maxLen {
		r.sendError(origin, fmt.Sprintf("%s (max %d characters)", ErrMessageTooLong, r.maxLen))
		return chat.Message{}, ErrMessageTooLong
	}

	msg := chat.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Sender:    chat.SenderUser,
		Content:   trimmed,
		Timestamp: time.Now().UTC(),
	}

	r.deliver(sessionID, EventMessage, msg)
	r.Stream(sessionID).Publish(msg)
	return msg, nil
}

// Broadcast delivers an outbound bot message to every connection joined to
// the session. Having no joined connection is not an error.
func (r *Registry) Broadcast(sessionID string, msg chat.BotMessage) {
	r.deliver(sessionID, EventMessage, msg)
}

func (r *Registry) deliver(sessionID, event string, payload any) {
	r.mu.Lock()
	members := make([]*member, 0, len(r.groups[sessionID]))
	for m := range r.groups[sessionID] {
		members = append(members, m)
	}
	r.mu.Unlock()

	for _, m := range members {
		if err := m.conn.Send(event, payload); err != nil {
			log.Printf("[socket] send failed user=%s session=%s: %v", m.userID, sessionID, err)
		}
	}
}

func (r *Registry) sendError(conn Conn, message string) {
	if conn == nil {
		return
	}
	payload := chat.SocketError{Error: message, Timestamp: time.Now().UTC()}
	if err := conn.Send(EventError, payload); err != nil {
		log.Printf("[socket] error event send failed: %v", err)
	}
}

// Stream returns the session's inbound stream, creating it on first use.
func (r *Registry) Stream(sessionID string) *Stream {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.streams[sessionID]
	if !ok {
		s = newStream()
		r.streams[sessionID] = s
	}
	return s
}

// RemoveStream tears the session's stream down, closing it so subscribers
// observe end-of-stream. A later Stream call yields a fresh stream.
func (r *Registry) RemoveStream(sessionID string) {
	r.mu.Lock()
	s, ok := r.streams[sessionID]
	delete(r.streams, sessionID)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
}
