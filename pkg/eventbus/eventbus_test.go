package eventbus

import (
	"testing"
	"time"
)

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	b := New()
	sub := b.Subscribe("heartbeat.alive")
	defer sub.Unsubscribe()

	b.Publish("heartbeat.alive", 42)

	select {
	case ev := <-sub.C():
		if ev.Payload != 42 {
			t.Fatalf("payload = %v, want 42", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestSubscribeOnlySeesMatchingTopic(t *testing.T) {
	b := New()
	sub := b.Subscribe("a.topic")
	defer sub.Unsubscribe()

	b.Publish("b.topic", "nope")

	select {
	case ev := <-sub.C():
		t.Fatalf("unexpected delivery: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	sub := b.Subscribe("x")
	sub.Unsubscribe()

	b.Publish("x", "late")

	select {
	case ev := <-sub.C():
		t.Fatalf("unexpected delivery after unsubscribe: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDropsRatherThanBlocks(t *testing.T) {
	b := New()
	sub := b.Subscribe("noisy")
	defer sub.Unsubscribe()

	for i := 0; i < 100; i++ {
		b.Publish("noisy", i)
	}
	// Publish must not have blocked despite nobody draining the channel.
}
