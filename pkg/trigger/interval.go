package trigger

import (
	"sync"
	"time"

	"github.com/flux-framework/flux-cron-go/internal/reactor"
)

// Interval fires at a fixed period, optionally with a different delay
// before the first firing. Ported from interval.c's cron_interval.
type Interval struct {
	mu sync.Mutex

	r        *reactor.Reactor
	schedule func()

	after    time.Duration
	interval time.Duration

	timer      *reactor.Timer
	nextWakeup time.Time
}

// NewInterval builds an Interval trigger from create-time args: a
// required "interval" (seconds) and an optional "after" (seconds,
// defaulting to interval — mirroring cron_interval_create's "after =
// interval if unset or negative" rule).
func NewInterval(r *reactor.Reactor, schedule func(), args map[string]any) (*Interval, error) {
	interval, err := durationArg(args, "interval")
	if err != nil {
		return nil, err
	}
	after, err := optionalDurationArg(args, "after", interval)
	if err != nil {
		return nil, err
	}
	if after < 0 {
		after = interval
	}
	return &Interval{r: r, schedule: schedule, after: after, interval: interval}, nil
}

func (it *Interval) TypeName() string { return "interval" }

// Start arms the periodic timer.
func (it *Interval) Start() {
	it.mu.Lock()
	it.nextWakeup = time.Now().Add(it.after)
	it.mu.Unlock()
	it.timer = it.r.TickerFunc(it.after, it.interval, it.fire)
}

func (it *Interval) fire() {
	it.mu.Lock()
	it.nextWakeup = time.Now().Add(it.interval)
	schedule := it.schedule
	it.mu.Unlock()
	schedule()
}

// Stop disarms the timer without destroying the trigger.
func (it *Interval) Stop() {
	if it.timer != nil {
		it.timer.Stop()
		it.timer = nil
	}
}

// Destroy releases the trigger's resources.
func (it *Interval) Destroy() { it.Stop() }

// ToValue mirrors cron_interval's tojson: {interval, after, next_wakeup}.
func (it *Interval) ToValue() map[string]any {
	it.mu.Lock()
	defer it.mu.Unlock()
	return map[string]any{
		"interval":    it.interval.Seconds(),
		"after":       it.after.Seconds(),
		"next_wakeup": it.nextWakeup.Unix(),
	}
}
