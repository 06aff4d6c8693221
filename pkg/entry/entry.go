// Package entry implements the cron entry engine: the object that owns
// one trigger, runs at most one task at a time, and tracks run
// statistics and a bounded history of finished tasks. Ported from
// flux-core's src/modules/cron/cron.c (the entry-related functions) and
// src/modules/cron/entry.h (the cron_entry/cron_stats layout).
package entry

import (
	"context"
	"sync"
	"time"

	"github.com/flux-framework/flux-cron-go/internal/reactor"
	"github.com/flux-framework/flux-cron-go/pkg/cronerr"
	"github.com/flux-framework/flux-cron-go/pkg/eventbus"
	"github.com/flux-framework/flux-cron-go/pkg/executor"
	"github.com/flux-framework/flux-cron-go/pkg/task"
	"github.com/flux-framework/flux-cron-go/pkg/trigger"
)

// Dispatcher decides whether a just-scheduled task runs immediately or is
// held in a FIFO until a sync event next fires — the manager-level
// epsilon-gating behavior of cron_entry_defer. An Entry doesn't implement
// the gating itself; it only asks its Dispatcher to run the closure at
// the appropriate time. Defer reports whether run was actually queued
// (true) rather than invoked synchronously (false), so the entry can
// account the dispatch in its own stats.deferred counter.
type Dispatcher interface {
	Defer(run func()) bool
}

// Stats mirrors cron_stats: per-entry run accounting, reset whenever the
// entry is (re)started.
type Stats struct {
	CreateTime time.Time
	StartTime  time.Time
	LastRun    time.Time
	Total      int64
	Count      int64
	FailCount  int64
	Success    int64
	Failure    int64
	Deferred   int64
}

// Config is the create-time description of an entry, unpacked from a
// cron.create request's fields (mirrors cron_entry_create's argument
// unpacking and its defaults).
type Config struct {
	ID               int64
	Rank             int
	Name             string
	Command          string
	Cwd              string
	Env              []string
	Repeat           int64         // 0 = unlimited
	StopOnFailure    int64         // 0 = never; otherwise stop after N failures since last start
	Timeout          time.Duration // <=0 means no timeout
	TaskHistoryCount int           // defaults to 1 if <=0
	TypeName         string
	TriggerArgs      map[string]any
}

// Entry is a single cron entry: one trigger, at most one active task,
// and a bounded ring of completed tasks.
type Entry struct {
	mu sync.Mutex

	r          *reactor.Reactor
	exec       executor.Executor
	dispatcher Dispatcher

	cfg     Config
	trigger trigger.Trigger

	stopped          bool
	destroyed        bool
	destroyRequested bool

	active    *task.Task
	completed []*task.Task
	stats     Stats
}

// New constructs the entry and its trigger without arming the trigger;
// the entry reports Stopped until callers call Start explicitly, mirroring
// cron_entry_create's "entries start enabled by default" followed by an
// explicit cron_entry_start at the end of creation.
func New(r *reactor.Reactor, exec executor.Executor, bus *eventbus.Bus, dispatcher Dispatcher, cfg Config) (*Entry, error) {
	if cfg.TaskHistoryCount <= 0 {
		cfg.TaskHistoryCount = 1
	}
	if cfg.Cwd == "" {
		cfg.Cwd = "."
	}

	e := &Entry{
		r: r, exec: exec, dispatcher: dispatcher, cfg: cfg,
		stats: Stats{CreateTime: time.Now()}, stopped: true,
	}

	factory, err := trigger.Lookup(cfg.TypeName)
	if err != nil {
		return nil, err
	}
	t, err := factory(trigger.Deps{
		Reactor:         r,
		Bus:             bus,
		Schedule:        e.ScheduleTask,
		OnUnsatisfiable: e.StopSafe,
	}, cfg.TriggerArgs)
	if err != nil {
		return nil, err
	}
	e.trigger = t
	return e, nil
}

// ID returns the entry's unique, manager-assigned identifier.
func (e *Entry) ID() int64 { return e.cfg.ID }

// Name returns the entry's name, which may be empty.
func (e *Entry) Name() string { return e.cfg.Name }

// Start (re)arms the trigger and resets the per-start run counters,
// mirroring cron_entry_start.
func (e *Entry) Start() {
	e.mu.Lock()
	e.stats.StartTime = time.Now()
	e.stats.Count = 0
	e.stats.FailCount = 0
	e.stopped = false
	e.mu.Unlock()
	e.trigger.Start()
}

// Stop disarms the trigger immediately. Any task already running
// continues to completion.
func (e *Entry) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.mu.Unlock()
	e.trigger.Stop()
}

// StopSafe defers the stop to the next reactor iteration, mirroring
// cron_entry_stop_safe's use of a prepare watcher: it lets a dispatch
// already in flight this iteration finish being posted before the
// trigger is disarmed.
func (e *Entry) StopSafe() {
	e.r.Post(e.Stop)
}

// Stopped reports whether the entry's trigger is currently disarmed.
func (e *Entry) Stopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// ScheduleTask is the trigger's callback: "run the command now". At most
// one task may be active at a time; a trigger firing while a task is
// still running, or while the entry is stopped, is silently refused,
// mirroring cron_entry_schedule_task's guard against e->task already
// being set.
func (e *Entry) ScheduleTask() {
	e.mu.Lock()
	if e.active != nil || e.destroyed || e.stopped {
		e.mu.Unlock()
		return
	}
	e.stats.Count++
	e.stats.Total++
	if e.cfg.Repeat > 0 && e.stats.Count >= e.cfg.Repeat {
		// This is the last task this entry will ever run; stop the
		// trigger before dispatch so no further firing can race it.
		e.stopped = true
		go e.trigger.Stop()
	}
	t := task.New(e.cfg.Rank, e.cfg.Command, e.cfg.Cwd, e.cfg.Env, e.cfg.Timeout)
	e.active = t
	e.mu.Unlock()

	if e.dispatcher.Defer(func() { e.runTask(t) }) {
		e.mu.Lock()
		e.stats.Deferred++
		e.mu.Unlock()
	}
}

// runTask hands the task to the executor. Called on the reactor
// goroutine (directly, or via the manager's deferred-dispatch queue).
func (e *Entry) runTask(t *task.Task) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if e.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
	}

	h, err := e.exec.Start(ctx, executor.Request{
		Command: t.Command,
		Cwd:     t.Cwd,
		Env:     t.Env,
		Timeout: e.cfg.Timeout,
	})
	if err != nil {
		if cancel != nil {
			cancel()
		}
		if kind, _ := cronerr.KindOf(err); kind == cronerr.DispatchFailure {
			t.MarkRexecFailed(0)
		} else {
			t.MarkExecFailed(0)
		}
		e.onTaskFinished(t)
		return
	}
	t.MarkStarted(h)

	go func() {
		defer func() {
			if cancel != nil {
				cancel()
			}
		}()
		res := <-h.Wait()
		t.SetOutputTail(res.Stdout, res.Stderr)
		if ctx.Err() == context.DeadlineExceeded {
			t.MarkTimedOut()
		}
		if res.ExecErrno != 0 {
			t.MarkExecFailed(res.ExecErrno)
		} else {
			t.MarkExited(res.ExitCode, res.Signaled, res.Signal)
		}
		e.r.Post(func() { e.onTaskFinished(t) })
	}()
}

// onTaskFinished records the task's outcome, pushes it onto the
// completed-task ring, and completes a deferred Destroy if one is
// pending — mirroring cron_entry_finished_handler / cron_entry_failure /
// cron_entry_push_finished_task.
func (e *Entry) onTaskFinished(t *task.Task) {
	e.mu.Lock()
	e.active = nil
	e.stats.LastRun = time.Now()
	if t.Failed() {
		e.stats.FailCount++
		e.stats.Failure++
	} else {
		e.stats.Success++
	}
	e.pushCompletedLocked(t)
	stopOnFailure := e.cfg.StopOnFailure > 0 && e.stats.FailCount >= e.cfg.StopOnFailure
	destroyRequested := e.destroyRequested
	e.mu.Unlock()

	if stopOnFailure {
		e.Stop()
	}
	if destroyRequested {
		e.finishDestroy()
	}
}

func (e *Entry) pushCompletedLocked(t *task.Task) {
	e.completed = append(e.completed, t)
	if len(e.completed) > e.cfg.TaskHistoryCount {
		e.completed = e.completed[len(e.completed)-e.cfg.TaskHistoryCount:]
	}
}

// Kill sends sig to the entry's currently running task, if any.
func (e *Entry) Kill(sig int) error {
	e.mu.Lock()
	t := e.active
	e.mu.Unlock()
	if t == nil {
		return cronerr.New(cronerr.NotFound, "no task currently running")
	}
	return t.Kill(signalOf(sig))
}

// Destroy stops the entry and releases its trigger. If a task is
// currently active, destruction is deferred until that task finishes,
// mirroring cron_entry_destroy's "return early if e->task still set"
// behavior — the entry is removed from the manager's registry
// immediately, but its resources are only released once quiescent.
func (e *Entry) Destroy() (deferred bool) {
	e.Stop()
	e.mu.Lock()
	if e.active != nil {
		e.destroyRequested = true
		e.mu.Unlock()
		return true
	}
	e.destroyed = true
	e.mu.Unlock()
	e.trigger.Destroy()
	return false
}

func (e *Entry) finishDestroy() {
	e.mu.Lock()
	e.destroyed = true
	e.mu.Unlock()
	e.trigger.Destroy()
}

// Destroyed reports whether the entry has fully released its resources.
func (e *Entry) Destroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

// ToValue renders the entry as a JSON-serializable structure, mirroring
// cron_entry_to_json's field set.
func (e *Entry) ToValue() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := map[string]any{
		"id":      e.cfg.ID,
		"name":    e.cfg.Name,
		"command": e.cfg.Command,
		"cwd":     e.cfg.Cwd,
		"rank":    e.cfg.Rank,
		"type":    e.cfg.TypeName,
		"repeat":  e.cfg.Repeat,
		"stopped": e.stopped,
		"stats": map[string]any{
			"ctime":     e.stats.CreateTime.Unix(),
			"starttime": e.stats.StartTime.Unix(),
			"lastrun":   unixOrZero(e.stats.LastRun),
			"total":     e.stats.Total,
			"count":     e.stats.Count,
			"failcount": e.stats.FailCount,
			"success":   e.stats.Success,
			"failure":   e.stats.Failure,
			"deferred":  e.stats.Deferred,
		},
		"typedata": e.trigger.ToValue(),
	}
	if e.cfg.Timeout > 0 {
		v["timeout"] = e.cfg.Timeout.Seconds()
	}

	tasks := make([]map[string]any, 0, len(e.completed)+1)
	if e.active != nil {
		tasks = append(tasks, e.active.ToValue())
	}
	for _, t := range e.completed {
		tasks = append(tasks, t.ToValue())
	}
	v["tasks"] = tasks
	return v
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
