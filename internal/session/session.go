package session

import (
	"context"
	"errors"
	"time"

	botmodel "github.com/parleyhq/parley/internal/model/bot"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrUserRequired = errors.New("user id is required")
	ErrModeRequired = errors.New("mode id is required")
	ErrBotsRequired = errors.New("at least one bot snapshot is required")
)

// Session is a user's bound configuration of bots and mode for one
// conversation lifetime. The bot and mode set is immutable once created.
type Session struct {
	ID        string              `json:"id"`
	UserID    string              `json:"userId"`
	ModeID    string              `json:"modeId"`
	Bots      []botmodel.Snapshot `json:"bots"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Lookup resolves a connection token to the session it grants access to.
// Implemented by the session store; the orchestration core only depends on
// this contract.
type Lookup interface {
	FindSessionByToken(ctx context.Context, token string) (Session, error)
}
