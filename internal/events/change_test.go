package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterFanOut(t *testing.T) {
	b := NewChangeBroadcaster(4)
	first := b.Subscribe()
	second := b.Subscribe()

	b.Publish(Change{Group: "main", At: time.Now()})

	for _, ch := range []chan Change{first, second} {
		select {
		case c := <-ch:
			assert.Equal(t, "main", c.Group)
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestBroadcasterDropsSlowConsumer(t *testing.T) {
	b := NewChangeBroadcaster(1)
	ch := b.Subscribe()

	b.Publish(Change{Group: "first"})
	b.Publish(Change{Group: "second"}) // buffer full, dropped

	c := <-ch
	assert.Equal(t, "first", c.Group)
	assert.Empty(t, ch)
}

func TestBroadcasterUnsubscribe(t *testing.T) {
	b := NewChangeBroadcaster(1)
	ch := b.Subscribe()
	b.Unsubscribe(ch)

	_, open := <-ch
	require.False(t, open, "channel must be closed")

	// publishing after unsubscribe must not panic
	b.Publish(Change{Group: "late"})

	// double unsubscribe is a no-op
	b.Unsubscribe(ch)
}
