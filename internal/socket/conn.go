package socket

// Wire event names shared with clients.
const (
	EventSendMessage    = "chat:send_message"
	EventMessage        = "chat:message"
	EventError          = "chat:error"
	EventSessionCreated = "chat:session_created"
)

// Conn is one live transport link. The registry only needs to push events and
// force-close; the websocket handler provides the concrete implementation.
type Conn interface {
	// Send delivers one named event with a JSON-serializable payload.
	Send(event string, payload any) error

	// Close terminates the connection. Must be safe to call more than once.
	Close() error
}
