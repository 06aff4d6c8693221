package trigger

import (
	"sync"
	"time"

	"github.com/flux-framework/flux-cron-go/internal/reactor"
	"github.com/flux-framework/flux-cron-go/pkg/eventbus"
)

// Event fires when messages arrive on a subscribed topic, with optional
// throttling: skip until the "after"'th event, then take only every
// "nth" one, and never fire more often than "min_interval" — deferring
// (not dropping) an event that arrives too soon. Ported from event.c.
type Event struct {
	mu sync.Mutex

	r        *reactor.Reactor
	bus      *eventbus.Bus
	schedule func()

	topic       string
	nth         int
	after       int
	minInterval time.Duration

	counter int
	paused  bool
	lastRun time.Time

	sub          eventbus.Subscription
	unsubscribed bool
	stopCh       chan struct{}
	deferTimer   *reactor.Timer
}

// NewEvent builds an Event trigger. topic is required; nth, after, and
// min_interval (seconds) default to 0 (no throttling). The subscription
// is created immediately, mirroring cron_event_create — Start/Stop only
// control whether incoming events are processed, not the subscription
// itself.
func NewEvent(r *reactor.Reactor, bus *eventbus.Bus, schedule func(), args map[string]any) (*Event, error) {
	topic, err := stringArg(args, "topic")
	if err != nil {
		return nil, err
	}
	nth, err := optionalIntArg(args, "nth", 0)
	if err != nil {
		return nil, err
	}
	after, err := optionalIntArg(args, "after", 0)
	if err != nil {
		return nil, err
	}
	minInterval, err := optionalDurationArg(args, "min_interval", 0)
	if err != nil {
		return nil, err
	}
	e := &Event{
		r: r, bus: bus, schedule: schedule,
		topic: topic, nth: nth, after: after, minInterval: minInterval,
	}
	e.sub = bus.Subscribe(topic)
	return e, nil
}

func (e *Event) TypeName() string { return "event" }

// Start resets the event counter and begins processing incoming events.
func (e *Event) Start() {
	e.mu.Lock()
	e.counter = 0
	e.paused = false
	e.mu.Unlock()
	e.stopCh = make(chan struct{})
	go e.forward(e.stopCh)
}

// forward relays bus deliveries onto the reactor goroutine, where
// handleEvent runs with the rest of the trigger's state.
func (e *Event) forward(stop chan struct{}) {
	for {
		select {
		case ev, ok := <-e.sub.C():
			if !ok {
				return
			}
			e.r.Post(func() { e.handleEvent(ev) })
		case <-stop:
			return
		}
	}
}

func (e *Event) handleEvent(ev eventbus.Event) {
	e.mu.Lock()
	e.counter++
	if e.paused {
		e.mu.Unlock()
		return
	}
	if e.counter < e.after {
		e.mu.Unlock()
		return
	}
	if e.nth != 0 && (e.counter-e.after)%e.nth != 0 {
		e.mu.Unlock()
		return
	}
	if e.minInterval > 0 && !e.lastRun.IsZero() {
		elapsed := time.Since(e.lastRun)
		if elapsed < e.minInterval {
			remaining := e.minInterval - elapsed
			e.paused = true
			e.mu.Unlock()
			e.deferTimer = e.r.AfterFunc(remaining, e.fireDeferred)
			return
		}
	}
	e.lastRun = time.Now()
	schedule := e.schedule
	e.mu.Unlock()
	schedule()
}

// fireDeferred runs a schedule that was held back to respect min_interval,
// mirroring ev_timer_cb.
func (e *Event) fireDeferred() {
	e.mu.Lock()
	e.paused = false
	e.lastRun = time.Now()
	schedule := e.schedule
	e.mu.Unlock()
	schedule()
}

// Stop halts event processing but leaves the subscription in place.
func (e *Event) Stop() {
	if e.stopCh != nil {
		close(e.stopCh)
		e.stopCh = nil
	}
	if e.deferTimer != nil {
		e.deferTimer.Stop()
		e.deferTimer = nil
	}
}

// Destroy unsubscribes from the bus exactly once.
func (e *Event) Destroy() {
	e.Stop()
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.unsubscribed {
		e.sub.Unsubscribe()
		e.unsubscribed = true
	}
}

// ToValue mirrors cron_event_to_json: {topic, nth, after, counter, min_interval}.
func (e *Event) ToValue() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return map[string]any{
		"topic":        e.topic,
		"nth":          e.nth,
		"after":        e.after,
		"counter":      e.counter,
		"min_interval": e.minInterval.Seconds(),
	}
}
