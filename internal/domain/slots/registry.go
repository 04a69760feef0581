package slots

import (
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/ui"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/id"
)

// ViewRegistration is one extension's claim on one slot
type ViewRegistration struct {
	ID           id.ViewID    `json:"id"`
	ExtensionID  string       `json:"extension_id"`
	Slot         string       `json:"slot"`
	Component    ui.Component `json:"-"`
	RegisteredAt time.Time    `json:"registered_at"`
}

// ChangeKind describes a registry mutation
type ChangeKind string

const (
	ChangeRegistered ChangeKind = "registered"
	ChangeReplaced   ChangeKind = "replaced"
	ChangeRemoved    ChangeKind = "removed"
)

// Change is delivered to subscribers after a slot is modified
type Change struct {
	Kind        ChangeKind `json:"kind"`
	Slot        string     `json:"slot"`
	ExtensionID string     `json:"extension_id"`
	Views       int        `json:"views"`
	Version     uint64     `json:"version"`
}

// Registry maps slot names to ordered view registrations
type Registry struct {
	mu      sync.RWMutex
	slots   map[string][]ViewRegistration
	version uint64

	subMu  sync.RWMutex
	subs   map[int]func(Change)
	nextID int
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		slots: make(map[string][]ViewRegistration),
		subs:  make(map[int]func(Change)),
	}
}

// RegisterView inserts a view or replaces the same component's prior entry
func (r *Registry) RegisterView(extensionID, slot string, component ui.Component) ViewRegistration {
	reg := ViewRegistration{
		ID:           id.NewViewID(),
		ExtensionID:  extensionID,
		Slot:         slot,
		Component:    component,
		RegisteredAt: time.Now(),
	}

	r.mu.Lock()
	views := r.slots[slot]
	kind := ChangeRegistered
	replaced := false
	for i := range views {
		if views[i].ExtensionID == extensionID && ui.SameComponent(views[i].Component, component) {
			views[i] = reg
			replaced = true
			kind = ChangeReplaced
			break
		}
	}
	if !replaced {
		views = append(views, reg)
	}
	r.slots[slot] = views
	r.version++
	change := Change{Kind: kind, Slot: slot, ExtensionID: extensionID, Views: len(views), Version: r.version}
	r.mu.Unlock()

	r.notify(change)
	return reg
}

// GetViews returns a copy of a slot's registrations; never nil
func (r *Registry) GetViews(slot string) []ViewRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := r.slots[slot]
	out := make([]ViewRegistration, len(views))
	copy(out, views)
	return out
}

// RemoveExtension removes every view owned by extensionID from every slot
// and returns how many were removed
func (r *Registry) RemoveExtension(extensionID string) int {
	r.mu.Lock()
	var changes []Change
	removed := 0
	for slot, views := range r.slots {
		kept := views[:0:0]
		for _, v := range views {
			if v.ExtensionID != extensionID {
				kept = append(kept, v)
			}
		}
		if len(kept) == len(views) {
			continue
		}
		removed += len(views) - len(kept)
		r.version++
		if len(kept) == 0 {
			delete(r.slots, slot)
		} else {
			r.slots[slot] = kept
		}
		changes = append(changes, Change{
			Kind:        ChangeRemoved,
			Slot:        slot,
			ExtensionID: extensionID,
			Views:       len(kept),
			Version:     r.version,
		})
	}
	r.mu.Unlock()

	for _, c := range changes {
		r.notify(c)
	}
	return removed
}

// Count returns the number of views owned by extensionID
func (r *Registry) Count(extensionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, views := range r.slots {
		for _, v := range views {
			if v.ExtensionID == extensionID {
				n++
			}
		}
	}
	return n
}

// Slots returns the names of non-empty slots, sorted
func (r *Registry) Slots() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.slots))
	for name := range r.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Owners returns the ids of extensions holding at least one view, sorted
func (r *Registry) Owners() []string {
	r.mu.RLock()
	seen := make(map[string]struct{})
	for _, views := range r.slots {
		for _, v := range views {
			seen[v.ExtensionID] = struct{}{}
		}
	}
	r.mu.RUnlock()

	owners := make([]string, 0, len(seen))
	for extID := range seen {
		owners = append(owners, extID)
	}
	sort.Strings(owners)
	return owners
}

// Version increases on every mutation
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Subscribe registers fn for change notifications. fn runs on the
// mutating goroutine and must not block.
func (r *Registry) Subscribe(fn func(Change)) (unsubscribe func()) {
	r.subMu.Lock()
	subID := r.nextID
	r.nextID++
	r.subs[subID] = fn
	r.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subs, subID)
			r.subMu.Unlock()
		})
	}
}

func (r *Registry) notify(c Change) {
	r.subMu.RLock()
	fns := make([]func(Change), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subMu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}
