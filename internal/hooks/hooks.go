// Package hooks dispatches optional, fire-and-forget callbacks around the
// login and logout flows. Hooks observe; they cannot veto or alter the
// action they observe, and their failures never reach the caller.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/gwlsn/docsauth/internal/logger"
	"github.com/gwlsn/docsauth/internal/metrics"
	"github.com/gwlsn/docsauth/internal/session"
)

// Event names a point in the login/logout flow.
type Event string

const (
	PreLogin   Event = "pre_login"
	PostLogin  Event = "post_login"
	PreLogout  Event = "pre_logout"
	PostLogout Event = "post_logout"
)

// Events lists every event in flow order.
var Events = []Event{PreLogin, PostLogin, PreLogout, PostLogout}

// Call is what a hook receives.
type Call struct {
	Event   Event
	Request *http.Request
	Session *session.Session
	Payload map[string]any
}

// Func is a hook implementation.
type Func func(ctx context.Context, call Call) error

// Catalog holds hook functions by name.
type Catalog struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{funcs: make(map[string]Func)}
}

// Register adds fn under name, replacing any previous entry.
func (c *Catalog) Register(name string, fn Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs[name] = fn
}

// Lookup returns the hook registered under name.
func (c *Catalog) Lookup(name string) (Func, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.funcs[name]
	return fn, ok
}

// Names returns the registered names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.funcs))
	for name := range c.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Bindings maps each event to the name of the hook to run. Events without an
// entry (or with an empty name) run nothing.
type Bindings map[Event]string

// Dispatcher resolves bindings against a catalog at call time.
type Dispatcher struct {
	catalog  *Catalog
	bindings Bindings
}

// NewDispatcher creates a dispatcher. The bindings map is copied.
func NewDispatcher(catalog *Catalog, bindings Bindings) *Dispatcher {
	if catalog == nil {
		catalog = NewCatalog()
	}
	copied := make(Bindings, len(bindings))
	for event, name := range bindings {
		copied[event] = name
	}
	return &Dispatcher{catalog: catalog, bindings: copied}
}

// Validate reports bindings that name unknown events or hooks. Dispatch
// tolerates both, so callers typically only log the result.
func (d *Dispatcher) Validate() error {
	var errs []error
	for _, event := range Events {
		name := d.bindings[event]
		if name == "" {
			continue
		}
		if _, ok := d.catalog.Lookup(name); !ok {
			errs = append(errs, fmt.Errorf("hook %q bound to %s is not registered", name, event))
		}
	}
	for event := range d.bindings {
		if !slices.Contains(Events, event) {
			errs = append(errs, fmt.Errorf("unknown hook event %q", event))
		}
	}
	return errors.Join(errs...)
}

// Dispatch runs the hook bound to call.Event, if any. Errors and panics are
// logged and counted, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) {
	if d == nil {
		return
	}
	name := d.bindings[call.Event]
	if name == "" {
		return
	}
	fn, ok := d.catalog.Lookup(name)
	if !ok {
		metrics.HookFailuresTotal.WithLabelValues(string(call.Event)).Inc()
		logger.Error("Error calling hook", "event", call.Event, "hook", name, "error", "hook not registered")
		return
	}
	if call.Payload == nil {
		call.Payload = map[string]any{}
	}

	if err := invoke(ctx, fn, call); err != nil {
		metrics.HookFailuresTotal.WithLabelValues(string(call.Event)).Inc()
		logger.Error("Error calling hook", "event", call.Event, "hook", name, "error", err)
	}
}

func invoke(ctx context.Context, fn Func, call Call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return fn(ctx, call)
}
