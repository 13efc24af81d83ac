package lobby

import (
	"fmt"
	"sync"
)

// Sink is a player's outbound event queue. The coordinator pushes
// encoded frames in; the player's connection relay drains them. It is
// the only handle the coordinator holds on a connection.
type Sink struct {
	name   string
	events chan []byte
	mu     sync.Mutex
	closed bool
}

// NewSink creates a Sink for the given player name.
//
// Precondition: name must be non-empty.
// Postcondition: Returns a Sink with an open events channel.
func NewSink(name string, capacity int) *Sink {
	if capacity <= 0 {
		capacity = 100
	}
	return &Sink{
		name:   name,
		events: make(chan []byte, capacity),
	}
}

// Name returns the owning player's name.
func (s *Sink) Name() string {
	return s.name
}

// Push enqueues an encoded frame without blocking. When the queue is
// full the newest event (the one being pushed) is dropped and an error
// reported; the caller decides whether that matters.
//
// Postcondition: The frame is enqueued, or an error when the sink is
// closed or full.
func (s *Sink) Push(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("sink %s is closed", s.name)
	}
	select {
	case s.events <- frame:
		return nil
	default:
		return fmt.Errorf("sink %s event buffer full", s.name)
	}
}

// Events returns the read-only event channel. The relay's write pump
// reads from this channel until it is closed.
func (s *Sink) Events() <-chan []byte {
	return s.events
}

// Close marks the sink as closed and closes the events channel.
//
// Postcondition: Further Push calls return an error. Safe to call twice.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// IsClosed reports whether Close has been called.
func (s *Sink) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
