package trigger

import (
	"sync"
	"time"

	"github.com/flux-framework/flux-cron-go/internal/reactor"
	"github.com/flux-framework/flux-cron-go/pkg/cronodate"
)

// Datetime fires according to a cronodate.Date calendar match, rescheduling
// itself after every firing to the next matching instant. Ported from
// datetime.c's cron_datetime_create / reschedule_cb.
type Datetime struct {
	mu sync.Mutex

	r               *reactor.Reactor
	schedule        func()
	onUnsatisfiable func()

	date       *cronodate.Date
	timer      *reactor.Timer
	nextWakeup time.Time
}

// unitArgNames maps each cronodate unit to the create-args key datetime
// entries use for it, matching datetime_entry_from_json's field names.
var unitArgNames = map[cronodate.Unit]string{
	cronodate.Second:  "second",
	cronodate.Minute:  "minute",
	cronodate.Hour:    "hour",
	cronodate.MDay:    "mday",
	cronodate.Month:   "month",
	cronodate.Year:    "year",
	cronodate.Weekday: "weekday",
}

// NewDatetime builds a Datetime trigger. Each of second/minute/hour/mday/
// month/year/weekday is optional in args; an absent unit defaults to "*"
// (matches every value), a string value is parsed via the cronodate
// grammar, and a numeric value pins that unit to a single integer.
func NewDatetime(r *reactor.Reactor, schedule func(), onUnsatisfiable func(), args map[string]any) (*Datetime, error) {
	date := cronodate.New()
	date.Fill()
	for u, key := range unitArgNames {
		v, ok := args[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if err := date.Set(u, val); err != nil {
				return nil, err
			}
		case float64:
			if err := date.SetInt(u, int(val)); err != nil {
				return nil, err
			}
		case int:
			if err := date.SetInt(u, val); err != nil {
				return nil, err
			}
		}
	}
	return &Datetime{r: r, schedule: schedule, onUnsatisfiable: onUnsatisfiable, date: date}, nil
}

func (d *Datetime) TypeName() string { return "datetime" }

func (d *Datetime) Start() {
	d.armNext()
}

// armNext computes the next matching instant and schedules a one-shot
// timer for it. If no match exists within cronodate's search bound, the
// original stops the entry safely instead of looping forever; we do the
// same via onUnsatisfiable.
func (d *Datetime) armNext() {
	now := time.Now()
	next, err := d.date.Next(now)
	if err != nil {
		if d.onUnsatisfiable != nil {
			d.onUnsatisfiable()
		}
		return
	}
	d.mu.Lock()
	d.nextWakeup = next
	d.mu.Unlock()
	d.timer = d.r.AfterFunc(next.Sub(now), d.fire)
}

func (d *Datetime) fire() {
	d.mu.Lock()
	schedule := d.schedule
	d.mu.Unlock()
	schedule()
	d.armNext()
}

func (d *Datetime) Stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Datetime) Destroy() { d.Stop() }

// ToValue mirrors cron_datetime_to_json: next_wakeup plus each unit's
// configured range string.
func (d *Datetime) ToValue() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := map[string]any{
		"next_wakeup": d.nextWakeup.Unix(),
	}
	for u, key := range unitArgNames {
		v[key] = d.date.Get(u)
	}
	return v
}
