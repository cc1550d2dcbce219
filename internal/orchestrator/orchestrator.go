// Package orchestrator wires one session's chat mode to that session's
// inbound stream and outbound delivery, and owns the wiring's lifetime.
package orchestrator

import (
	"context"
	"fmt"
	"log"

	"github.com/parleyhq/parley/internal/bot"
	"github.com/parleyhq/parley/internal/chatmode"
	"github.com/parleyhq/parley/internal/model/chat"
	"github.com/parleyhq/parley/internal/socket"
)

// Orchestrator binds one session's bots and mode to its message stream.
type Orchestrator struct {
	sessionID string
	bots      []*bot.Bot
	mode      chatmode.Mode
	sock      *socket.Registry
}

// New builds an orchestrator; it does nothing until Initialize.
func New(sessionID string, bots []*bot.Bot, mode chatmode.Mode, sock *socket.Registry) *Orchestrator {
	return &Orchestrator{
		sessionID: sessionID,
		bots:      bots,
		mode:      mode,
		sock:      sock,
	}
}

// Initialize obtains the session's inbound stream, binds the bots into the
// mode and subscribes the mode with outbound delivery wired to broadcast.
// Failures propagate so the session-creation flow can roll back.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	stream := o.sock.Stream(o.sessionID)

	if err := o.mode.Bind(o.bots); err != nil {
		return fmt.Errorf("failed to bind bots for session %s: %w", o.sessionID, err)
	}

	emit := func(msg chat.BotMessage) {
		o.sock.Broadcast(o.sessionID, msg)
	}
	if err := o.mode.Subscribe(ctx, stream, emit); err != nil {
		return fmt.Errorf("failed to subscribe chat mode for session %s: %w", o.sessionID, err)
	}

	log.Printf("[orchestrator] initialized session=%s bots=%d mode=%s", o.sessionID, len(o.bots), o.mode.Info().ModeID)
	return nil
}

// Destroy tears the mode down, then removes and closes the session's inbound
// stream. The session registry guarantees it runs once per session lifetime.
func (o *Orchestrator) Destroy() {
	o.mode.Teardown()
	o.sock.RemoveStream(o.sessionID)
	log.Printf("[orchestrator] destroyed session=%s", o.sessionID)
}
