package chatmode

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/bot"
	"github.com/parleyhq/parley/internal/model/chat"
)

// DefaultModeID identifies the standard all-bots-respond mode.
const DefaultModeID = "default"

var defaultModeInfo = Info{
	ModeID:      DefaultModeID,
	Title:       "Standard Chat",
	Description: "All selected bots respond to each message",
	MinBots:     1,
	MaxBots:     5,
}

var (
	ErrAlreadyBound  = errors.New("chat mode already bound")
	ErrNotBound      = errors.New("chat mode has no bots bound")
	ErrModeDestroyed = errors.New("chat mode destroyed")
)

type modeState int

const (
	stateIdle modeState = iota
	stateActive
	stateDestroyed
)

// DefaultMode dispatches every inbound message to all bound bots
// concurrently. Each reply is emitted as soon as its bot settles; the round
// joins before the next inbound message is processed, so one connection's
// messages are handled in emission order.
type DefaultMode struct {
	mu     sync.Mutex
	state  modeState
	bots   []*bot.Bot
	cancel func()
	done   chan struct{}
}

// NewDefaultMode returns an idle mode instance.
func NewDefaultMode() *DefaultMode {
	return &DefaultMode{}
}

func (m *DefaultMode) Info() Info { return defaultModeInfo }

// Bind fixes the working bot set. Callable once per mode lifetime.
func (m *DefaultMode) Bind(bots []*bot.Bot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case stateDestroyed:
		return ErrModeDestroyed
	case stateActive:
		return ErrAlreadyBound
	}
	if len(m.bots) > 0 {
		return ErrAlreadyBound
	}

	m.bots = make([]*bot.Bot, len(bots))
	copy(m.bots, bots)
	return nil
}

// Subscribe attaches the mode to the session's inbound stream. Replies are
// forwarded through emit until the stream completes or Teardown is called.
func (m *DefaultMode) Subscribe(ctx context.Context, stream MessageStream, emit EmitFunc) error {
	m.mu.Lock()
	if m.state == stateDestroyed {
		m.mu.Unlock()
		return ErrModeDestroyed
	}
	if m.state == stateActive {
		m.mu.Unlock()
		return ErrAlreadyBound
	}
	if len(m.bots) == 0 {
		m.mu.Unlock()
		return ErrNotBound
	}

	messages, cancel := stream.Subscribe()
	m.cancel = cancel
	m.done = make(chan struct{})
	m.state = stateActive
	bots := m.bots
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		for msg := range messages {
			dispatch(ctx, bots, msg, emit)
		}
	}()

	return nil
}

// dispatch fans one user message out to every bot and waits for all of them
// to settle. A failed bot yields a degraded reply, never a missing one.
func dispatch(ctx context.Context, bots []*bot.Bot, msg chat.Message, emit EmitFunc) {
	var wg sync.WaitGroup
	for _, b := range bots {
		wg.Add(1)
		go func(b *bot.Bot) {
			defer wg.Done()
			reply := b.SendMessage(ctx, msg.Content)
			emit(toBotMessage(reply, msg))
		}(b)
	}
	wg.Wait()
}

func toBotMessage(reply bot.Reply, userMessage chat.Message) chat.BotMessage {
	return chat.BotMessage{
		ID:                    uuid.NewString(),
		SessionID:             userMessage.SessionID,
		Sender:                chat.SenderBot,
		Content:               reply.Content,
		Timestamp:             time.Now().UTC(),
		BotName:               reply.BotName,
		Color:                 reply.Color,
		RespondingToMessageID: userMessage.ID,
		ProcessingTime:        reply.ProcessingTime,
	}
}

// Teardown unsubscribes from the inbound stream and waits for the in-flight
// round to drain. Idempotent; safe even if the mode was never bound.
func (m *DefaultMode) Teardown() {
	m.mu.Lock()
	if m.state == stateDestroyed {
		m.mu.Unlock()
		return
	}
	m.state = stateDestroyed
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	log.Printf("[chatmode] default mode torn down")
}
