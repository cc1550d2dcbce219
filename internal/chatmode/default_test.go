package chatmode

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/bot"
	botmodel "github.com/parleyhq/parley/internal/model/bot"
	"github.com/parleyhq/parley/internal/model/chat"
	"github.com/parleyhq/parley/internal/provider"
)

type stubProvider struct {
	id    string
	reply string
	err   error
	delay time.Duration
}

func (p *stubProvider) ID() string { return p.id }

func (p *stubProvider) ConfigSchema() []botmodel.SchemaField {
	return []botmodel.SchemaField{
		{Name: "name", Type: botmodel.FieldString, DefaultValue: p.id + "-bot", Hidden: true},
		{Name: "color", Type: botmodel.FieldString, DefaultValue: "#000000", Hidden: true},
	}
}

func (p *stubProvider) SendChatCompletion(_ context.Context, req provider.Request) (provider.Completion, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return provider.Completion{}, p.err
	}
	return provider.Completion{Content: p.reply, ModelID: req.ModelID}, nil
}

func (p *stubProvider) AvailableModels(context.Context) []string {
	return []string{"stub-model"}
}

type fakeStream struct {
	ch       chan chat.Message
	cancelMu sync.Mutex
	canceled bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{ch: make(chan chat.Message, 8)}
}

func (s *fakeStream) Subscribe() (<-chan chat.Message, func()) {
	return s.ch, func() {
		s.cancelMu.Lock()
		defer s.cancelMu.Unlock()
		if !s.canceled {
			s.canceled = true
			close(s.ch)
		}
	}
}

func newBot(p provider.Provider) *bot.Bot {
	return bot.New(p, "stub-model", nil)
}

func collectReplies(t *testing.T, out <-chan chat.BotMessage, n int) []chat.BotMessage {
	t.Helper()
	replies := make([]chat.BotMessage, 0, n)
	for len(replies) < n {
		select {
		case msg := <-out:
			replies = append(replies, msg)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d replies", len(replies), n)
		}
	}
	return replies
}

func TestDefaultModeFansOutToAllBots(t *testing.T) {
	mode := NewDefaultMode()
	bots := []*bot.Bot{
		newBot(&stubProvider{id: "a", reply: "reply from a"}),
		newBot(&stubProvider{id: "b", reply: "reply from b"}),
	}

	if err := mode.Bind(bots); err != nil {
		t.Fatalf("Bind err: %v", err)
	}

	stream := newFakeStream()
	out := make(chan chat.BotMessage, 8)
	emit := func(msg chat.BotMessage) { out <- msg }

	if err := mode.Subscribe(context.Background(), stream, emit); err != nil {
		t.Fatalf("Subscribe err: %v", err)
	}
	defer mode.Teardown()

	inbound := chat.Message{ID: "m1", SessionID: "s1", Sender: chat.SenderUser, Content: "hello"}
	stream.ch <- inbound

	replies := collectReplies(t, out, 2)

	contents := map[string]bool{}
	ids := map[string]bool{}
	for _, r := range replies {
		if r.SessionID != "s1" {
			t.Fatalf("unexpected session id: %s", r.SessionID)
		}
		if r.Sender != chat.SenderBot {
			t.Fatalf("unexpected sender: %s", r.Sender)
		}
		if r.RespondingToMessageID != "m1" {
			t.Fatalf("unexpected correlation id: %s", r.RespondingToMessageID)
		}
		if r.ID == "" {
			t.Fatal("expected generated message id")
		}
		ids[r.ID] = true
		contents[r.Content] = true
	}
	if len(ids) != 2 {
		t.Fatal("expected distinct generated ids")
	}
	if !contents["reply from a"] || !contents["reply from b"] {
		t.Fatalf("missing bot content: %v", contents)
	}
}

func TestDefaultModeIsolatesBotFailures(t *testing.T) {
	mode := NewDefaultMode()
	bots := []*bot.Bot{
		newBot(&stubProvider{id: "a", err: &provider.Error{Category: provider.CategoryRateLimit, Message: "429"}}),
		newBot(&stubProvider{id: "b", reply: "the real completion"}),
	}

	if err := mode.Bind(bots); err != nil {
		t.Fatalf("Bind err: %v", err)
	}

	stream := newFakeStream()
	out := make(chan chat.BotMessage, 8)
	if err := mode.Subscribe(context.Background(), stream, func(msg chat.BotMessage) { out <- msg }); err != nil {
		t.Fatalf("Subscribe err: %v", err)
	}
	defer mode.Teardown()

	stream.ch <- chat.Message{ID: "m1", SessionID: "s1", Content: "hello"}

	replies := collectReplies(t, out, 2)

	byName := map[string]chat.BotMessage{}
	for _, r := range replies {
		byName[r.BotName] = r
	}
	if byName["a-bot"].Content != "I'm currently busy. Please try again in a moment." {
		t.Fatalf("expected degraded reply for a, got %q", byName["a-bot"].Content)
	}
	if byName["b-bot"].Content != "the real completion" {
		t.Fatalf("expected real completion for b, got %q", byName["b-bot"].Content)
	}
}

func TestDefaultModeSlowBotDoesNotDelaySibling(t *testing.T) {
	mode := NewDefaultMode()
	bots := []*bot.Bot{
		newBot(&stubProvider{id: "slow", reply: "late", delay: 500 * time.Millisecond}),
		newBot(&stubProvider{id: "fast", reply: "early"}),
	}

	if err := mode.Bind(bots); err != nil {
		t.Fatalf("Bind err: %v", err)
	}

	stream := newFakeStream()
	out := make(chan chat.BotMessage, 8)
	if err := mode.Subscribe(context.Background(), stream, func(msg chat.BotMessage) { out <- msg }); err != nil {
		t.Fatalf("Subscribe err: %v", err)
	}
	defer mode.Teardown()

	start := time.Now()
	stream.ch <- chat.Message{ID: "m1", SessionID: "s1", Content: "hello"}

	select {
	case first := <-out:
		if first.BotName != "fast-bot" {
			t.Fatalf("expected the fast bot first, got %s", first.BotName)
		}
		if time.Since(start) >= 400*time.Millisecond {
			t.Fatal("fast reply was delayed by the slow sibling")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fast reply")
	}

	collectReplies(t, out, 1)
}

func TestDefaultModeBindTwice(t *testing.T) {
	mode := NewDefaultMode()
	bots := []*bot.Bot{newBot(&stubProvider{id: "a"})}

	if err := mode.Bind(bots); err != nil {
		t.Fatalf("Bind err: %v", err)
	}
	if err := mode.Bind(bots); !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("expected ErrAlreadyBound, got %v", err)
	}
}

func TestDefaultModeSubscribeWithoutBind(t *testing.T) {
	mode := NewDefaultMode()

	err := mode.Subscribe(context.Background(), newFakeStream(), func(chat.BotMessage) {})
	if !errors.Is(err, ErrNotBound) {
		t.Fatalf("expected ErrNotBound, got %v", err)
	}
}

func TestDefaultModeTeardownIdempotent(t *testing.T) {
	mode := NewDefaultMode()
	mode.Teardown() // never bound
	mode.Teardown()

	if err := mode.Bind([]*bot.Bot{newBot(&stubProvider{id: "a"})}); !errors.Is(err, ErrModeDestroyed) {
		t.Fatalf("expected ErrModeDestroyed after teardown, got %v", err)
	}
}

func TestDefaultModeTeardownUnsubscribes(t *testing.T) {
	mode := NewDefaultMode()
	if err := mode.Bind([]*bot.Bot{newBot(&stubProvider{id: "a", reply: "ok"})}); err != nil {
		t.Fatalf("Bind err: %v", err)
	}

	stream := newFakeStream()
	out := make(chan chat.BotMessage, 8)
	if err := mode.Subscribe(context.Background(), stream, func(msg chat.BotMessage) { out <- msg }); err != nil {
		t.Fatalf("Subscribe err: %v", err)
	}

	mode.Teardown()
	mode.Teardown() // idempotent after activity

	select {
	case msg := <-out:
		t.Fatalf("unexpected reply after teardown: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestModeFactory(t *testing.T) {
	m, err := New(DefaultModeID)
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	if m.Info().ModeID != DefaultModeID {
		t.Fatalf("unexpected mode id: %s", m.Info().ModeID)
	}

	if _, err := New("nope"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}

	info, err := InfoFor(DefaultModeID)
	if err != nil {
		t.Fatalf("InfoFor err: %v", err)
	}
	if info.MinBots != 1 || info.MaxBots != 5 {
		t.Fatalf("unexpected bot bounds: %+v", info)
	}

	if len(AvailableModes()) != 1 {
		t.Fatal("expected exactly one registered mode")
	}
}
