// Package chatmode defines the pluggable fan-out policy that decides how the
// bots of a session participate in a conversation.
package chatmode

import (
	"context"
	"errors"
	"fmt"

	"github.com/parleyhq/parley/internal/bot"
	"github.com/parleyhq/parley/internal/model/chat"
)

// ErrUnknownMode indicates an unrecognized mode id.
var ErrUnknownMode = errors.New("unknown chat mode")

// Info is the static metadata of a mode, consumed by the session preparation
// flow to validate the bot-count selection.
type Info struct {
	ModeID      string `json:"modeId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	MinBots     int    `json:"minBots"`
	MaxBots     int    `json:"maxBots"`
}

// EmitFunc receives one outbound message per bot reply. Implementations must
// be safe for concurrent calls.
type EmitFunc func(chat.BotMessage)

// MessageStream is the inbound side a mode subscribes to. Satisfied by
// *socket.Stream.
type MessageStream interface {
	Subscribe() (<-chan chat.Message, func())
}

// StreamingBot is the optional capability a bot may implement to stream reply
// chunks instead of returning one completion. Modes query it with a type
// assertion; no current mode exercises it.
type StreamingBot interface {
	StreamMessage(ctx context.Context, prompt string) (<-chan string, error)
}

// Mode is one session's fan-out strategy. Lifecycle: Bind once, Subscribe
// once, Teardown any number of times.
type Mode interface {
	Info() Info
	Bind(bots []*bot.Bot) error
	Subscribe(ctx context.Context, stream MessageStream, emit EmitFunc) error
	Teardown()
}

// New constructs a fresh mode instance for the given id.
func New(modeID string) (Mode, error) {
	switch modeID {
	case DefaultModeID:
		return NewDefaultMode(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, modeID)
	}
}

// InfoFor returns the metadata of a mode without instantiating it.
func InfoFor(modeID string) (Info, error) {
	switch modeID {
	case DefaultModeID:
		return defaultModeInfo, nil
	default:
		return Info{}, fmt.Errorf("%w: %s", ErrUnknownMode, modeID)
	}
}

// AvailableModes lists the metadata of every registered mode.
func AvailableModes() []Info {
	return []Info{defaultModeInfo}
}
