package socket

import (
	"log"
	"sync"

	"github.com/parleyhq/parley/internal/model/chat"
)

// streamBuffer bounds how far a subscriber may lag behind the publisher
// before messages are dropped.
const streamBuffer = 64

// Stream is the multicast inbound-message channel of one session. It is
// created lazily by the registry and closed exactly once on teardown, so
// subscribers observe end-of-stream instead of hanging.
type Stream struct {
	mu     sync.Mutex
	subs   map[int]chan chat.Message
	nextID int
	closed bool
}

func newStream() *Stream {
	return &Stream{subs: make(map[int]chan chat.Message)}
}

// Subscribe registers a new subscriber and returns its channel plus a cancel
// function. Subscribing to a closed stream yields an already-closed channel.
func (s *Stream) Subscribe() (<-chan chat.Message, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan chat.Message, streamBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers a message to every subscriber. A subscriber that has
// fallen more than streamBuffer messages behind loses the message.
func (s *Stream) Publish(msg chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	for _, ch := range s.subs {
		select {
		case ch <- msg:
		default:
			log.Printf("[stream] dropping message %s for slow subscriber session=%s", msg.ID, msg.SessionID)
		}
	}
}

// Close completes the stream. Safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
