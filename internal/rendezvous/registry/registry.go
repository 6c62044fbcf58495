// Package registry implements the local command registry from
// spec.md §4.5: the set of published commands keyed by name, with
// argument-class resolution and the system-command allowlist.
package registry

import (
	"fmt"
	"sync"
)

// Named is the minimal surface the registry needs from a command —
// kept independent of the root package's Command interface so the
// registry has no import cycle back to it.
type Named interface {
	Name() string
	IsSystem() bool
}

// ErrDuplicate/ErrUnknown mirror spec.md §7 DUPLICATE_COMMAND/
// UNKNOWN_COMMAND; callers map them onto *rendezvous.Error.
var (
	ErrDuplicate = fmt.Errorf("registry: command already published")
	ErrUnknown   = fmt.Errorf("registry: command not published")
	ErrReserved  = fmt.Errorf("registry: command name reserved for system commands")
)

// Registry is a name-keyed map of published commands guarded by a
// single mutex, following the teacher's single-owner-map convention
// (Unity owning state.Nodes) generalized to arbitrary command names.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Named

	// onChange fires whenever the published capability set changes —
	// the registry doesn't know about TXT records, it just tells
	// discovery a republish is due (spec.md §4.5).
	onChange func()
}

func New(onChange func()) *Registry {
	return &Registry{commands: map[string]Named{}, onChange: onChange}
}

// Publish registers cmd under its name. System command names are
// reserved and can't be published by user code (spec.md §4.5, §8
// invariant 5) — this check is for *user* registrations; the
// dispatcher registers system commands directly via PublishSystem.
func (r *Registry) Publish(cmd Named) error {
	if !cmd.IsSystem() && isReservedName(cmd.Name()) {
		return ErrReserved
	}
	return r.publish(cmd)
}

// PublishSystem registers a system command, bypassing the
// reserved-name check (only the dispatcher calls this: at
// construction for _hb/_sub/_unsub/_disc/_cap, and for _ann through
// Dispatcher.RegisterAnnounce).
func (r *Registry) PublishSystem(cmd Named) error {
	return r.publish(cmd)
}

func (r *Registry) publish(cmd Named) error {
	r.mu.Lock()
	_, exists := r.commands[cmd.Name()]
	if exists {
		r.mu.Unlock()
		return ErrDuplicate
	}
	r.commands[cmd.Name()] = cmd
	r.mu.Unlock()

	if !cmd.IsSystem() && r.onChange != nil {
		r.onChange()
	}
	return nil
}

// Unpublish removes name from the registry, reversing Publish
// (spec.md §4.5). The caller is responsible for forcing disconnect of
// current subscribers before or after calling this.
func (r *Registry) Unpublish(name string) error {
	r.mu.Lock()
	cmd, exists := r.commands[name]
	if !exists {
		r.mu.Unlock()
		return ErrUnknown
	}
	delete(r.commands, name)
	r.mu.Unlock()

	if !cmd.IsSystem() && r.onChange != nil {
		r.onChange()
	}
	return nil
}

// Lookup resolves a command by name (spec.md §4.5 argument-class
// resolution).
func (r *Registry) Lookup(name string) (Named, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// PublishedNames returns every currently published, non-system
// command name — this is the set that feeds the mDNS TXT capability
// list (spec.md §4.4/§4.5).
func (r *Registry) PublishedNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, cmd := range r.commands {
		if !cmd.IsSystem() {
			names = append(names, name)
		}
	}
	return names
}

func isReservedName(name string) bool {
	return len(name) > 0 && name[0] == '_'
}
