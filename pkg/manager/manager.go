// Package manager implements the cron service's entry registry and the
// five-and-a-half cron.* RPC surfaces (create/delete/list/start/stop/
// sync), ported from flux-core's src/modules/cron/cron.c (the cron_ctx
// and RPC-handler functions; entry-level behavior lives in pkg/entry).
package manager

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flux-framework/flux-cron-go/internal/reactor"
	"github.com/flux-framework/flux-cron-go/pkg/cronerr"
	"github.com/flux-framework/flux-cron-go/pkg/entry"
	"github.com/flux-framework/flux-cron-go/pkg/eventbus"
	"github.com/flux-framework/flux-cron-go/pkg/executor"
)

// DefaultSyncEpsilon is cron.c's hard-coded sync epsilon: a dispatch
// arriving less than this long after the last sync event is treated as
// "just synced" and runs immediately instead of queuing for the next one.
const DefaultSyncEpsilon = 15 * time.Millisecond

// CreateRequest is the unpacked form of a cron.create RPC.
type CreateRequest struct {
	Name             string
	Command          string
	Cwd              string
	Env              []string
	Rank             int
	Repeat           int64
	StopOnFailure    int64
	Timeout          time.Duration
	TaskHistoryCount int
	TypeName         string
	TriggerArgs      map[string]any
	Stopped          bool // if true, the entry is created but not started
}

// Manager owns the entry registry and the sync-event gate that decides
// whether a newly scheduled task dispatches immediately or waits for the
// next sync event.
type Manager struct {
	mu sync.Mutex

	r    *reactor.Reactor
	exec executor.Executor
	bus  *eventbus.Bus
	cwd  string

	nextID  int64
	entries map[int64]*entry.Entry
	order   []int64

	syncTopic   string
	syncEpsilon time.Duration
	lastSync    time.Time
	deferred    []func()

	sub        eventbus.Subscription
	syncStopCh chan struct{}
}

// New constructs a Manager. cwd is the default working directory for
// entries that don't specify their own.
func New(r *reactor.Reactor, exec executor.Executor, bus *eventbus.Bus, cwd string) *Manager {
	return &Manager{
		r: r, exec: exec, bus: bus, cwd: cwd,
		entries:     make(map[int64]*entry.Entry),
		syncEpsilon: DefaultSyncEpsilon,
	}
}

// Defer implements entry.Dispatcher: the sync-event gate. A dispatch runs
// immediately if no sync topic is configured, or if a sync event fired
// within the last syncEpsilon; otherwise it waits in a FIFO for the next
// sync event. Mirrors cron_entry_defer. Reports whether run was queued
// rather than invoked synchronously.
func (m *Manager) Defer(run func()) bool {
	m.mu.Lock()
	if m.syncTopic == "" || time.Since(m.lastSync) < m.syncEpsilon {
		m.mu.Unlock()
		run()
		return false
	}
	m.deferred = append(m.deferred, run)
	m.mu.Unlock()
	return true
}

// Create allocates a new entry, registers it, and (unless req.Stopped)
// starts it. Mirrors cron_entry_create's field unpacking and defaults.
func (m *Manager) Create(req CreateRequest) (*entry.Entry, error) {
	if req.Command == "" {
		return nil, cronerr.New(cronerr.Protocol, "command is required")
	}
	if req.Repeat < 0 {
		return nil, cronerr.New(cronerr.Protocol, "repeat must be >= 0")
	}
	if req.TaskHistoryCount <= 0 {
		req.TaskHistoryCount = 1
	}
	cwd := req.Cwd
	if cwd == "" {
		cwd = m.cwd
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.mu.Unlock()

	e, err := entry.New(m.r, m.exec, m.bus, m, entry.Config{
		ID:               id,
		Rank:             req.Rank,
		Name:             req.Name,
		Command:          req.Command,
		Cwd:              cwd,
		Env:              req.Env,
		Repeat:           req.Repeat,
		StopOnFailure:    req.StopOnFailure,
		Timeout:          req.Timeout,
		TaskHistoryCount: req.TaskHistoryCount,
		TypeName:         req.TypeName,
		TriggerArgs:      req.TriggerArgs,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.entries[id] = e
	m.order = append(m.order, id)
	m.mu.Unlock()

	if !req.Stopped {
		e.Start()
	}
	return e, nil
}

// lookup returns the entry for id, or a NotFound error.
func (m *Manager) lookup(id int64) (*entry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, cronerr.New(cronerr.NotFound, fmt.Sprintf("no such entry: %d", id))
	}
	return e, nil
}

// Delete removes an entry from the registry and destroys it. If kill is
// true, any currently running task is sent SIGTERM first. Destruction of
// the entry's own resources may complete asynchronously if a task is
// still active (entry.Destroy defers); the registry removal here is
// immediate, matching the RPC's synchronous "deleted" response.
func (m *Manager) Delete(id int64, kill bool) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	if kill {
		_ = e.Kill(15) // SIGTERM
	}
	e.Destroy()

	m.mu.Lock()
	delete(m.entries, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
	return nil
}

// Start (re)arms an entry's trigger.
func (m *Manager) Start(id int64) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.Start()
	return nil
}

// Stop disarms an entry's trigger.
func (m *Manager) Stop(id int64) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.Stop()
	return nil
}

// List returns every registered entry's ToValue, in creation order,
// mirroring cron_ls_handler.
func (m *Manager) List() []map[string]any {
	m.mu.Lock()
	ids := append([]int64(nil), m.order...)
	m.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		m.mu.Lock()
		e, ok := m.entries[id]
		m.mu.Unlock()
		if ok {
			out = append(out, e.ToValue())
		}
	}
	return out
}

// Sync configures (or disables, if topic == "") the sync-event gate,
// mirroring cron_sync_handler. Disabling flushes any queued dispatches
// immediately. epsilon <= 0 leaves the current epsilon unchanged.
func (m *Manager) Sync(topic string, epsilon time.Duration) error {
	m.mu.Lock()
	oldSub := m.sub
	oldStop := m.syncStopCh

	if topic == "" {
		toRun := m.deferred
		m.deferred = nil
		m.syncTopic = ""
		m.sub = nil
		m.syncStopCh = nil
		m.mu.Unlock()
		if oldStop != nil {
			close(oldStop)
		}
		if oldSub != nil {
			oldSub.Unsubscribe()
		}
		for _, run := range toRun {
			run()
		}
		return nil
	}

	if epsilon > 0 {
		m.syncEpsilon = epsilon
	}
	m.syncTopic = topic
	m.mu.Unlock()

	if oldStop != nil {
		close(oldStop)
	}
	if oldSub != nil {
		oldSub.Unsubscribe()
	}

	sub := m.bus.Subscribe(topic)
	stop := make(chan struct{})
	m.mu.Lock()
	m.sub = sub
	m.syncStopCh = stop
	m.mu.Unlock()

	go m.forwardSync(sub, stop)
	return nil
}

func (m *Manager) forwardSync(sub eventbus.Subscription, stop chan struct{}) {
	for {
		select {
		case _, ok := <-sub.C():
			if !ok {
				return
			}
			m.r.Post(m.onSync)
		case <-stop:
			return
		}
	}
}

// onSync flushes every queued dispatch and marks the sync time, so
// dispatches arriving within the next epsilon run immediately. Mirrors
// the "new sync event flushes previously-deferred" half of
// cron_sync_handler.
func (m *Manager) onSync() {
	m.mu.Lock()
	m.lastSync = time.Now()
	toRun := m.deferred
	m.deferred = nil
	m.mu.Unlock()
	for _, run := range toRun {
		run()
	}
}

// ParseModuleArgs parses the module's "sync=TOPIC" and
// "sync_epsilon=DURATION" arguments (flux standard duration syntax),
// mirroring cron.c's process_args. An empty sync topic leaves the gate
// disabled. Call Sync with the result to apply it.
func ParseModuleArgs(args []string) (topic string, epsilon time.Duration, err error) {
	epsilon = DefaultSyncEpsilon
	for _, arg := range args {
		var key, val string
		if i := strings.IndexByte(arg, '='); i >= 0 {
			key, val = arg[:i], arg[i+1:]
		} else {
			key = arg
		}
		switch key {
		case "sync":
			topic = val
		case "sync_epsilon":
			d, perr := ParseFSD(val)
			if perr != nil {
				return "", 0, cronerr.Wrap(cronerr.SemanticParse, "sync_epsilon", perr)
			}
			epsilon = d
		default:
			return "", 0, cronerr.New(cronerr.NotImplemented, fmt.Sprintf("unknown module argument: %s", key))
		}
	}
	return topic, epsilon, nil
}
