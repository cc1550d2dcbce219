package chat

import "time"

// Sender values used on the wire.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Message is a single user turn flowing through a session's inbound stream.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// BotMessage is an outbound reply produced for one bot's answer to a Message.
type BotMessage struct {
	ID                    string    `json:"id"`
	SessionID             string    `json:"sessionId"`
	Sender                string    `json:"sender"`
	Content               string    `json:"content"`
	Timestamp             time.Time `json:"timestamp"`
	BotName               string    `json:"botName"`
	Color                 string    `json:"color"`
	RespondingToMessageID string    `json:"respondingToMessageId"`
	ProcessingTime        int64     `json:"processingTime,omitempty"`
}

// SocketError is the payload of a connection-scoped error event.
type SocketError struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}
