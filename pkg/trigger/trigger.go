// Package trigger implements the three cron trigger types — Interval,
// Datetime, and Event — ported from flux-core's src/modules/cron/
// interval.c, datetime.c, and event.c. A Trigger owns the reactor timer
// (or event subscription) that decides when its entry's command should
// run; it never touches task state directly, only calling back into the
// owning entry's Schedule hook when it's time to dispatch.
package trigger

import (
	"fmt"

	"github.com/flux-framework/flux-cron-go/pkg/cronerr"
	"github.com/flux-framework/flux-cron-go/pkg/eventbus"
	"github.com/flux-framework/flux-cron-go/internal/reactor"
)

// Trigger is the contract every trigger type satisfies, mirroring
// cron_entry_ops's create/destroy/start/stop/tojson surface.
type Trigger interface {
	TypeName() string
	Start()
	Stop()
	Destroy()
	ToValue() map[string]any
}

// Deps bundles the collaborators a trigger factory may need. Not every
// trigger type uses every field: Interval and Datetime ignore Bus, Event
// ignores OnUnsatisfiable.
type Deps struct {
	Reactor *reactor.Reactor
	Bus     *eventbus.Bus
	// Schedule is invoked on the reactor goroutine when the trigger
	// decides its entry's command should run now.
	Schedule func()
	// OnUnsatisfiable is invoked when a Datetime trigger's cronodate
	// spec can never match again (cron_entry_stop_safe in datetime.c).
	OnUnsatisfiable func()
}

// Factory constructs a Trigger from create-time arguments.
type Factory func(deps Deps, args map[string]any) (Trigger, error)

var registry = map[string]Factory{
	"interval": func(deps Deps, args map[string]any) (Trigger, error) {
		return NewInterval(deps.Reactor, deps.Schedule, args)
	},
	"datetime": func(deps Deps, args map[string]any) (Trigger, error) {
		return NewDatetime(deps.Reactor, deps.Schedule, deps.OnUnsatisfiable, args)
	},
	"event": func(deps Deps, args map[string]any) (Trigger, error) {
		return NewEvent(deps.Reactor, deps.Bus, deps.Schedule, args)
	},
}

// Lookup resolves a trigger type name to its Factory, mirroring
// cron_type_operations_lookup's ENOENT-on-unknown-type behavior.
func Lookup(typeName string) (Factory, error) {
	f, ok := registry[typeName]
	if !ok {
		return nil, cronerr.New(cronerr.NotImplemented, fmt.Sprintf("unknown trigger type %q", typeName))
	}
	return f, nil
}
