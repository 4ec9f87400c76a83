package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

func TestSubscribe_ReceivesPublishedEvent(t *testing.T) {
	b := New(4, nil)
	sub := b.Subscribe()
	defer sub.Close()

	b.Publish(alert.PoolEvent{Kind: alert.EventResyncTick, Program: "p1"})

	select {
	case ev := <-sub.C:
		assert.Equal(t, alert.EventResyncTick, ev.Kind)
		assert.Equal(t, "p1", ev.Program)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublish_FanOutToMultipleSubscribers(t *testing.T) {
	b := New(4, nil)
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer sub1.Close()
	defer sub2.Close()

	b.Publish(alert.PoolEvent{Kind: alert.EventResyncTick})

	for _, c := range []<-chan alert.PoolEvent{sub1.C, sub2.C} {
		select {
		case <-c:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out")
		}
	}
}

func TestPublish_DropsOnFullBuffer(t *testing.T) {
	b := New(1, nil)
	sub := b.Subscribe()
	defer sub.Close()

	b.Publish(alert.PoolEvent{Kind: alert.EventResyncTick, Count: 1})
	b.Publish(alert.PoolEvent{Kind: alert.EventResyncTick, Count: 2}) // buffer full, dropped

	require.Eventually(t, func() bool { return b.DroppedCount() == 1 }, time.Second, time.Millisecond)

	ev := <-sub.C
	assert.Equal(t, 1, ev.Count, "only the first event should have been delivered")
}

func TestClose_UnregistersSubscriber(t *testing.T) {
	b := New(4, nil)
	sub := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())

	sub.Close()
	assert.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub.C
	assert.False(t, ok, "channel should be closed")

	sub.Close() // idempotent
}
