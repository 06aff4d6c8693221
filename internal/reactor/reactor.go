// Package reactor implements the single-goroutine event loop the cron
// manager runs on, modeled on flux-core's libev-based reactor (a timer
// watcher per trigger, a message watcher for events, and a prepare
// watcher pass run once per loop iteration before blocking for I/O).
// Timer and event callbacks, task-finished handling and StopSafe stops
// run on this goroutine; the HTTP gateway calls the manager directly from
// its own goroutines, and manager/entry/task state is guarded by their
// own mutexes.
package reactor

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a handle to a scheduled (possibly repeating) callback. Stop
// prevents any future firing; it is safe to call more than once.
type Timer struct {
	id       int64
	r        *Reactor
	repeat   time.Duration
	stopped  atomic.Bool
}

// Stop cancels the timer. If it is currently queued to fire it will not
// run; if it is a repeating timer it will not be rescheduled.
func (t *Timer) Stop() {
	if t.stopped.Swap(true) {
		return
	}
	t.r.Post(func() { t.r.timers.remove(t.id) })
}

// Rearm reschedules a repeating timer's next firing to after d, without
// otherwise disturbing it. Used by the Datetime trigger, whose next
// wakeup is recomputed from the cronodate match rather than a fixed
// interval.
func (t *Timer) Rearm(d time.Duration) {
	if t.stopped.Load() {
		return
	}
	t.r.Post(func() {
		t.r.timers.reschedule(t.id, time.Now().Add(d))
	})
}

type timerEntry struct {
	id     int64
	at     time.Time
	fn     func()
	repeat time.Duration
	index  int
	timer  *Timer
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

func (h *timerHeap) remove(id int64) {
	for i, e := range *h {
		if e.id == id {
			heap.Remove(h, i)
			return
		}
	}
}

func (h *timerHeap) reschedule(id int64, at time.Time) {
	for _, e := range *h {
		if e.id == id {
			e.at = at
			heap.Fix(h, e.index)
			return
		}
	}
}

// Reactor is a single-goroutine event loop: a timer min-heap plus a
// channel of posted closures, with a prepare pass run once per iteration
// before the loop blocks waiting for the next event. Entries implement
// "stop safely" by posting the stop as a closure, so it runs after the
// closures already queued ahead of it.
type Reactor struct {
	post     chan func()
	timers   timerHeap
	prepares []func()
	nextID   int64
	mu       sync.Mutex // guards prepares only; timers/post are loop-owned
}

// New constructs an idle Reactor. Call Run to start the loop.
func New() *Reactor {
	return &Reactor{
		post: make(chan func(), 64),
	}
}

// Post submits fn to run on the reactor goroutine. Safe to call from any
// goroutine, including before Run starts (fn is buffered).
func (r *Reactor) Post(fn func()) {
	r.post <- fn
}

// AddPrepare registers fn to run once at the start of every loop
// iteration, before the loop computes its next blocking wait. Returns a
// function that removes it.
func (r *Reactor) AddPrepare(fn func()) (remove func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prepares = append(r.prepares, fn)
	idx := len(r.prepares) - 1
	return func() {
		r.Post(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if idx < len(r.prepares) {
				r.prepares[idx] = nil
			}
		})
	}
}

// AfterFunc schedules fn to run once after d, on the reactor goroutine.
func (r *Reactor) AfterFunc(d time.Duration, fn func()) *Timer {
	return r.schedule(d, 0, fn)
}

// TickerFunc schedules fn to run after d, then again every interval
// thereafter, on the reactor goroutine — the Go analogue of
// flux_timer_watcher_create(reactor, after, interval, ...).
func (r *Reactor) TickerFunc(after, interval time.Duration, fn func()) *Timer {
	return r.schedule(after, interval, fn)
}

func (r *Reactor) schedule(after, repeat time.Duration, fn func()) *Timer {
	id := atomic.AddInt64(&r.nextID, 1)
	t := &Timer{id: id, r: r, repeat: repeat}
	r.Post(func() {
		heap.Push(&r.timers, &timerEntry{id: id, at: time.Now().Add(after), fn: fn, repeat: repeat, timer: t})
	})
	return t
}

// Run blocks, executing posted closures and firing timers, until ctx is
// canceled.
func (r *Reactor) Run(ctx context.Context) {
	for {
		r.mu.Lock()
		for _, p := range r.prepares {
			if p != nil {
				p()
			}
		}
		r.mu.Unlock()

		var timer *time.Timer
		if len(r.timers) > 0 {
			d := time.Until(r.timers[0].at)
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
		} else {
			timer = time.NewTimer(24 * time.Hour)
		}

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case fn := <-r.post:
			timer.Stop()
			fn()
		case <-timer.C:
			r.fireDue()
		}
	}
}

func (r *Reactor) fireDue() {
	now := time.Now()
	for len(r.timers) > 0 && !r.timers[0].at.After(now) {
		e := heap.Pop(&r.timers).(*timerEntry)
		if e.timer.stopped.Load() {
			continue
		}
		if e.repeat > 0 {
			e.at = now.Add(e.repeat)
			heap.Push(&r.timers, e)
		}
		e.fn()
	}
}
