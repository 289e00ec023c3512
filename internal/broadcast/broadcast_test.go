package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_SubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster(10)

	ch := b.Subscribe()
	require.NotNil(t, ch)
	assert.Equal(t, 1, b.Len())

	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.Len())

	// second unsubscribe must not panic on a closed channel
	b.Unsubscribe(ch)
}

func TestBroadcaster_Publish(t *testing.T) {
	b := NewBroadcaster(10)
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	b.Publish("highscore", `[["alice",45]]`)

	for _, ch := range []chan Message{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, Message{Event: "highscore", Data: `[["alice",45]]`}, msg)
		case <-time.After(time.Second):
			t.Fatal("subscriber timed out")
		}
	}
}

func TestBroadcaster_SkipsFullChannels(t *testing.T) {
	b := NewBroadcaster(2)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish("fill", "1")
	b.Publish("fill", "2")

	done := make(chan struct{})
	go func() {
		b.Publish("overflow", "3")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on full channel")
	}
	assert.Len(t, ch, 2)
}
