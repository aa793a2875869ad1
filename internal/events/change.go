package events

import (
	"sync"
	"time"
)

// Change signals that a group's record was rewritten after a
// normalization pass. Consumers read the current state from the store
// directly; the event only says where to look.
type Change struct {
	Group string    `json:"group"`
	At    time.Time `json:"at"`
}

// ChangeBroadcaster fans out change events to all subscribers via
// buffered channels. It keeps the API intentionally small so call sites
// can stay straightforward.
type ChangeBroadcaster struct {
	mu     sync.RWMutex
	subs   map[chan Change]struct{}
	buffer int
}

// NewChangeBroadcaster creates a broadcaster with the given
// per-subscriber buffer.
func NewChangeBroadcaster(buffer int) *ChangeBroadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &ChangeBroadcaster{
		subs:   make(map[chan Change]struct{}),
		buffer: buffer,
	}
}

// Publish sends the event to all subscribers, dropping if a reader is slow.
func (b *ChangeBroadcaster) Publish(c Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- c:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives events until Unsubscribe is called.
func (b *ChangeBroadcaster) Subscribe() chan Change {
	ch := make(chan Change, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *ChangeBroadcaster) Unsubscribe(ch chan Change) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
