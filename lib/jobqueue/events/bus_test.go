package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	b := NewBus(4)
	sub := b.Subscribe()
	defer sub.Unsubscribe()

	b.Publish(Event{Kind: JobEnqueued, JobID: "j1"})

	select {
	case ev := <-sub.Events:
		assert.Equal(t, JobEnqueued, ev.Kind)
		assert.Equal(t, "j1", string(ev.JobID))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishDropsOldestOnFullSubscriber(t *testing.T) {
	b := NewBus(2)
	sub := b.Subscribe()
	defer sub.Unsubscribe()

	b.Publish(Event{Kind: JobEnqueued, JobID: "1"})
	b.Publish(Event{Kind: JobEnqueued, JobID: "2"})
	b.Publish(Event{Kind: JobEnqueued, JobID: "3"}) // subscriber buffer (cap 2) overflows; "1" is dropped

	first := <-sub.Events
	second := <-sub.Events
	assert.Equal(t, "2", string(first.JobID))
	assert.Equal(t, "3", string(second.JobID))

	select {
	case <-sub.Events:
		t.Fatal("expected no third event")
	default:
	}
}

func TestUnsubscribeClosesChannelAndStopsFanOut(t *testing.T) {
	b := NewBus(1)
	sub := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())

	sub.Unsubscribe()
	assert.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub.Events
	assert.False(t, ok, "channel should be closed after Unsubscribe")

	assert.NotPanics(t, func() { b.Publish(Event{Kind: JobEnqueued}) })
}

func TestMultipleSubscribersEachGetTheEvent(t *testing.T) {
	b := NewBus(4)
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer sub1.Unsubscribe()
	defer sub2.Unsubscribe()

	b.Publish(Event{Kind: QueueCreated, QueueID: "q1"})

	for _, sub := range []*Subscription{sub1, sub2} {
		select {
		case ev := <-sub.Events:
			assert.Equal(t, QueueCreated, ev.Kind)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out event")
		}
	}
}
