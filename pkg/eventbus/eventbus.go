// Package eventbus is the in-process publish/subscribe bus the Event
// trigger watches, standing in for the flux message broker's event
// topics (src/modules/cron/event.c subscribes to a topic string and
// receives every message published under it).
//
// Subscriptions match topics by exact string equality, not by glob,
// since flux event topics are themselves dotted literal strings in this
// module's usage.
package eventbus

import (
	"sync"
	"time"
)

// Event is one message published on the bus.
type Event struct {
	Topic   string
	Payload any
	Time    time.Time
}

// Subscription is a live registration against one topic.
type Subscription interface {
	// C delivers events published to the subscribed topic. Delivery is
	// best-effort: a slow subscriber drops events rather than blocking
	// the publisher, mirroring a bounded mailbox.
	C() <-chan Event
	Unsubscribe()
}

// Bus is an in-process event bus.
type Bus struct {
	mu   sync.Mutex
	subs map[string][]*subscription
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]*subscription)}
}

// Publish delivers payload to every current subscriber of topic.
func (b *Bus) Publish(topic string, payload any) {
	ev := Event{Topic: topic, Payload: payload, Time: time.Now()}
	b.mu.Lock()
	subs := append([]*subscription(nil), b.subs[topic]...)
	b.mu.Unlock()
	for _, s := range subs {
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// Subscribe registers interest in topic, matched by exact string equality.
func (b *Bus) Subscribe(topic string) Subscription {
	s := &subscription{bus: b, topic: topic, ch: make(chan Event, 16)}
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()
	return s
}

type subscription struct {
	bus   *Bus
	topic string
	ch    chan Event
}

func (s *subscription) C() <-chan Event { return s.ch }

func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	list := s.bus.subs[s.topic]
	for i, sub := range list {
		if sub == s {
			s.bus.subs[s.topic] = append(list[:i], list[i+1:]...)
			break
		}
	}
}
