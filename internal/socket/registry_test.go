package socket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	botmodel "github.com/parleyhq/parley/internal/model/bot"
	"github.com/parleyhq/parley/internal/model/chat"
	"github.com/parleyhq/parley/internal/session"
)

func botReply(sessionID string) chat.BotMessage {
	return chat.BotMessage{
		ID:        "bot-msg",
		SessionID: sessionID,
		Sender:    chat.SenderBot,
		Content:   "a reply",
		BotName:   "stub-bot",
	}
}

func chatMessage(sessionID string) chat.Message {
	return chat.Message{
		ID:        "user-msg",
		SessionID: sessionID,
		Sender:    chat.SenderUser,
		Content:   "hello",
	}
}

type fakeConn struct {
	mu     sync.Mutex
	events []fakeEvent
	closed int
}

type fakeEvent struct {
	event   string
	payload any
}

func (c *fakeConn) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, fakeEvent{event: event, payload: payload})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) eventsOf(event string) []fakeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []fakeEvent
	for _, e := range c.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type failingLookup struct{}

func (failingLookup) FindSessionByToken(context.Context, string) (session.Session, error) {
	return session.Session{}, errors.New("store offline")
}

func newTestSession(t *testing.T, store *session.Store) session.Session {
	t.Helper()
	sess, err := store.Create(context.Background(), "user-1", "default",
		[]botmodel.Snapshot{{ProviderID: "openai", ModelID: "gpt-4o"}})
	if err != nil {
		t.Fatalf("create session err: %v", err)
	}
	return sess
}

func TestAuthenticateMissingToken(t *testing.T) {
	r := NewRegistry(session.NewStore(), 0)

	_, err := r.Authenticate(context.Background(), "   ")
	if !errors.Is(err, ErrSessionIDMissing) {
		t.Fatalf("expected ErrSessionIDMissing, got %v", err)
	}
}

func TestAuthenticateUnknownSession(t *testing.T) {
	r := NewRegistry(session.NewStore(), 0)

	_, err := r.Authenticate(context.Background(), "no-such-session")
	if !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
}

func TestAuthenticateLookupFailure(t *testing.T) {
	r := NewRegistry(failingLookup{}, 0)

	_, err := r.Authenticate(context.Background(), "token")
	if !errors.Is(err, ErrAuthInternal) {
		t.Fatalf("expected ErrAuthInternal, got %v", err)
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	store := session.NewStore()
	sess := newTestSession(t, store)
	r := NewRegistry(store, 0)

	got, err := r.Authenticate(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Authenticate err: %v", err)
	}
	if got.UserID != "user-1" {
		t.Fatalf("unexpected owner: %s", got.UserID)
	}
}

func TestAdmitEvictsPriorConnection(t *testing.T) {
	store := session.NewStore()
	sess := newTestSession(t, store)
	r := NewRegistry(store, 0)

	first := &fakeConn{}
	second := &fakeConn{}

	r.Admit(first, "user-1", sess.ID)
	r.Admit(second, "user-1", sess.ID)

	if first.closeCount() != 1 {
		t.Fatalf("expected prior connection closed once, got %d", first.closeCount())
	}
	if second.closeCount() != 0 {
		t.Fatal("new connection must stay open")
	}

	// Only the new connection is joined to the session group.
	r.Broadcast(sess.ID, botReply(sess.ID))
	if len(first.eventsOf(EventMessage)) != 0 {
		t.Fatal("evicted connection should receive nothing")
	}
	if len(second.eventsOf(EventMessage)) != 1 {
		t.Fatalf("expected 1 message on new connection, got %d", len(second.eventsOf(EventMessage)))
	}
}

func TestDisconnectStaleConnectionIsNoop(t *testing.T) {
	store := session.NewStore()
	sess := newTestSession(t, store)
	r := NewRegistry(store, 0)

	first := &fakeConn{}
	second := &fakeConn{}
	r.Admit(first, "user-1", sess.ID)
	r.Admit(second, "user-1", sess.ID)

	// The evicted connection's read loop exits and calls Disconnect; the
	// replacement must remain the live connection.
	r.Disconnect("user-1", first)

	r.Broadcast(sess.ID, botReply(sess.ID))
	if len(second.eventsOf(EventMessage)) != 1 {
		t.Fatal("live connection lost after stale disconnect")
	}
}

func TestPublishWhitespaceOnlyContent(t *testing.T) {
	store := session.NewStore()
	sess := newTestSession(t, store)
	r := NewRegistry(store, 0)

	conn := &fakeConn{}
	r.Admit(conn, "user-1", sess.ID)

	stream, _ := r.Stream(sess.ID).Subscribe()

	_, err := r.Publish(conn, sess.ID, "   ")
	if !errors.Is(err, ErrContentRequired) {
		t.Fatalf("expected ErrContentRequired, got %v", err)
	}
	if len(stream) != 0 {
		t.Fatal("expected zero stream writes")
	}
	errs := conn.eventsOf(EventError)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(errs))
	}
}

func TestPublishContentTooLong(t *testing.T) {
	store := session.NewStore()
	sess := newTestSession(t, store)
	r := NewRegistry(store, 10)

	conn := &fakeConn{}
	r.Admit(conn, "user-1", sess.ID)

	stream, _ := r.Stream(sess.ID).Subscribe()

	_, err := r.Publish(conn, sess.ID, "01234567890")
	if !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
	if len(stream) != 0 {
		t.Fatal("expected zero stream writes")
	}

	errs := conn.eventsOf(EventError)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(errs))
	}
	socketErr, ok := errs[0].payload.(chat.SocketError)
	if !ok {
		t.Fatalf("unexpected error payload type %T", errs[0].payload)
	}
	want := fmt.Sprintf("Message too long (max %d characters)", 10)
	if socketErr.Error != want {
		t.Fatalf("expected %q, got %q", want, socketErr.Error)
	}
}

func TestPublishCountsCharactersNotBytes(t *testing.T) {
	store := session.NewStore()
	sess := newTestSession(t, store)
	r := NewRegistry(store, 500)

	conn := &fakeConn{}
	r.Admit(conn, "user-1", sess.ID)

	// 500 CJK characters are 1500 bytes but sit exactly at the limit.
	msg, err := r.Publish(conn, sess.ID, strings.Repeat("你", 500))
	if err != nil {
		t.Fatalf("expected message at the character limit to pass, got %v", err)
	}
	if got := len([]rune(msg.Content)); got != 500 {
		t.Fatalf("expected 500 characters, got %d", got)
	}

	if _, err := r.Publish(conn, sess.ID, strings.Repeat("你", 501)); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong past the limit, got %v", err)
	}
}

func TestPublishEchoesAndStreams(t *testing.T) {
	store := session.NewStore()
	sess := newTestSession(t, store)
	r := NewRegistry(store, 0)

	conn := &fakeConn{}
	r.Admit(conn, "user-1", sess.ID)

	stream, _ := r.Stream(sess.ID).Subscribe()

	msg, err := r.Publish(conn, sess.ID, "  hello  ")
	if err != nil {
		t.Fatalf("Publish err: %v", err)
	}
	if msg.Content != "hello" {
		t.Fatalf("expected trimmed content, got %q", msg.Content)
	}
	if msg.Sender != "user" || msg.SessionID != sess.ID || msg.ID == "" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	if len(conn.eventsOf(EventMessage)) != 1 {
		t.Fatal("expected echo to originating connection")
	}

	got := <-stream
	if got.ID != msg.ID {
		t.Fatalf("stream message mismatch: %s vs %s", got.ID, msg.ID)
	}
}

func TestBroadcastWithoutMembersIsNoop(t *testing.T) {
	r := NewRegistry(session.NewStore(), 0)
	r.Broadcast("ghost-session", botReply("ghost-session"))
}

func TestRemoveStreamYieldsFreshStream(t *testing.T) {
	r := NewRegistry(session.NewStore(), 0)

	old := r.Stream("s1")
	oldCh, _ := old.Subscribe()

	r.RemoveStream("s1")

	if _, ok := <-oldCh; ok {
		t.Fatal("old stream should complete on removal")
	}

	fresh := r.Stream("s1")
	if fresh == old {
		t.Fatal("expected a fresh stream after removal")
	}

	freshCh, _ := fresh.Subscribe()
	fresh.Publish(chatMessage("s1"))
	if got := <-freshCh; got.SessionID != "s1" {
		t.Fatalf("fresh stream not live: %+v", got)
	}
}
