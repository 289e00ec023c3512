package broadcast

import (
	"sync"
)

// Message is one server-sent event.
type Message struct {
	Event string
	Data  string
}

// Broadcaster fans messages out to SSE subscribers. Slow subscribers miss
// messages rather than stall the publisher.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[chan Message]bool
	buffer  int
}

func NewBroadcaster(buffer int) *Broadcaster {
	return &Broadcaster{
		clients: make(map[chan Message]bool),
		buffer:  buffer,
	}
}

func (b *Broadcaster) Subscribe() chan Message {
	ch := make(chan Message, b.buffer)
	b.mu.Lock()
	b.clients[ch] = true
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) Unsubscribe(ch chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.clients[ch] {
		delete(b.clients, ch)
		close(ch)
	}
}

func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broadcaster) Publish(event, data string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- Message{Event: event, Data: data}:
		default:
			// skip clients with full data channels
		}
	}
}
