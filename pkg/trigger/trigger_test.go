package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/flux-framework/flux-cron-go/internal/reactor"
	"github.com/flux-framework/flux-cron-go/pkg/eventbus"
)

func runReactor(t *testing.T) *reactor.Reactor {
	t.Helper()
	r := reactor.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go r.Run(ctx)
	return r
}

func TestLookupUnknownType(t *testing.T) {
	if _, err := Lookup("bogus"); err == nil {
		t.Fatal("expected an error for an unknown trigger type")
	}
}

func TestLookupKnownTypes(t *testing.T) {
	for _, name := range []string{"interval", "datetime", "event"} {
		if _, err := Lookup(name); err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
	}
}

func TestIntervalFiresRepeatedly(t *testing.T) {
	r := runReactor(t)
	fires := make(chan struct{}, 10)
	it, err := NewInterval(r, func() {
		select {
		case fires <- struct{}{}:
		default:
		}
	}, map[string]any{"interval": float64(0.01)})
	if err != nil {
		t.Fatalf("NewInterval: %v", err)
	}
	it.Start()
	defer it.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-fires:
		case <-time.After(time.Second):
			t.Fatal("interval trigger never fired")
		}
	}
}

func TestIntervalRequiresIntervalArg(t *testing.T) {
	r := runReactor(t)
	if _, err := NewInterval(r, func() {}, map[string]any{}); err == nil {
		t.Fatal("expected error for missing interval")
	}
}

func TestDatetimeFiresOnMatch(t *testing.T) {
	r := runReactor(t)
	fires := make(chan struct{}, 1)
	now := time.Now()
	sec := (now.Second() + 1) % 60
	dt, err := NewDatetime(r, func() { fires <- struct{}{} }, func() {}, map[string]any{
		"second": float64(sec),
	})
	if err != nil {
		t.Fatalf("NewDatetime: %v", err)
	}
	dt.Start()
	defer dt.Stop()

	select {
	case <-fires:
	case <-time.After(3 * time.Second):
		t.Fatal("datetime trigger never fired")
	}
}

func TestDatetimeCallsOnUnsatisfiable(t *testing.T) {
	r := runReactor(t)
	called := make(chan struct{}, 1)
	dt, err := NewDatetime(r, func() {}, func() { called <- struct{}{} }, map[string]any{
		"month": "feb",
		"mday":  float64(30),
	})
	if err != nil {
		t.Fatalf("NewDatetime: %v", err)
	}
	dt.Start()
	defer dt.Stop()

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("expected onUnsatisfiable to be called for Feb 30")
	}
}

func TestEventFiresOnPublish(t *testing.T) {
	r := runReactor(t)
	bus := eventbus.New()
	fires := make(chan struct{}, 1)
	ev, err := NewEvent(r, bus, func() { fires <- struct{}{} }, map[string]any{"topic": "heartbeat"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	ev.Start()
	defer ev.Destroy()

	bus.Publish("heartbeat", nil)

	select {
	case <-fires:
	case <-time.After(time.Second):
		t.Fatal("event trigger never fired")
	}
}

func TestEventAfterSkipsEarlyEvents(t *testing.T) {
	r := runReactor(t)
	bus := eventbus.New()
	fires := make(chan struct{}, 10)
	ev, err := NewEvent(r, bus, func() { fires <- struct{}{} }, map[string]any{
		"topic": "tick", "nth": float64(3), "after": float64(2),
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	ev.Start()
	defer ev.Destroy()

	// counter goes 1..5: skip 1 (< after), fire 2 (counter == after),
	// skip 3 and 4, fire 5 ((5-2) % 3 == 0).
	for i := 0; i < 5; i++ {
		bus.Publish("tick", nil)
	}

	for _, want := range []int{2, 5} {
		select {
		case <-fires:
		case <-time.After(time.Second):
			t.Fatalf("expected a fire for event #%d", want)
		}
	}
	select {
	case <-fires:
		t.Fatal("expected exactly two fires out of five events")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEventMinIntervalDefersRatherThanDrops(t *testing.T) {
	r := runReactor(t)
	bus := eventbus.New()
	fires := make(chan struct{}, 10)
	ev, err := NewEvent(r, bus, func() { fires <- struct{}{} }, map[string]any{
		"topic": "tick", "min_interval": float64(0.1),
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	ev.Start()
	defer ev.Destroy()

	bus.Publish("tick", nil)
	select {
	case <-fires:
	case <-time.After(time.Second):
		t.Fatal("first event should fire immediately")
	}

	bus.Publish("tick", nil) // arrives well within min_interval
	select {
	case <-fires:
	case <-time.After(2 * time.Second):
		t.Fatal("second event should still fire, just deferred")
	}
}
