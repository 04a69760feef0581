package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/capability"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/ipc"
)

const keyPrefix = "settings:"

var (
	ErrNotFound  = errors.New("setting not found")
	ErrForbidden = errors.New("setting is read-only for extensions")
)

// Store persists setting overrides
type Store interface {
	GetJSON(key string, v interface{}) (bool, error)
	SetJSON(key string, v interface{}) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
}

// Setting represents a configuration setting
type Setting struct {
	Key         string      `json:"key"`
	Value       interface{} `json:"value"`
	Type        string      `json:"type"` // "string", "number", "boolean", "json"
	Category    string      `json:"category"`
	Description string      `json:"description,omitempty"`
	Default     interface{} `json:"default"`
}

// Provider implements host settings. Extensions read every setting but
// write only under their own "ext.<id>." namespace.
type Provider struct {
	store Store
	mu    sync.RWMutex
	cache map[string]Setting
}

// NewProvider loads defaults and any persisted overrides
func NewProvider(store Store) (*Provider, error) {
	p := &Provider{store: store, cache: defaults()}
	if store == nil {
		return p, nil
	}

	keys, err := store.Keys(keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	for _, k := range keys {
		var s Setting
		found, err := store.GetJSON(k, &s)
		if err != nil || !found {
			continue
		}
		if def, ok := p.cache[s.Key]; ok {
			def.Value = s.Value
			s = def
		}
		p.cache[s.Key] = s
	}
	return p, nil
}

func defaults() map[string]Setting {
	list := []Setting{
		{Key: "general.theme", Value: "dark", Type: "string", Category: "general", Description: "UI theme"},
		{Key: "general.language", Value: "en", Type: "string", Category: "general", Description: "Interface language"},
		{Key: "general.notifications", Value: true, Type: "boolean", Category: "general", Description: "Show extension toasts"},
		{Key: "appearance.font_size", Value: float64(14), Type: "number", Category: "appearance", Description: "Font size (px)"},
		{Key: "appearance.accent_color", Value: "#3b82f6", Type: "string", Category: "appearance", Description: "Accent color"},
		{Key: "developer.debug_mode", Value: false, Type: "boolean", Category: "developer", Description: "Verbose extension diagnostics"},
	}
	out := make(map[string]Setting, len(list))
	for _, s := range list {
		s.Default = s.Value
		out[s.Key] = s
	}
	return out
}

// Operations exposes the settings.* host operations
func (p *Provider) Operations() []ipc.Operation {
	return []ipc.Operation{
		{Name: "settings.get", Description: "Get a setting: (key)", Handler: p.get},
		{Name: "settings.set", Description: "Set a setting: (key, value)", Handler: p.set},
		{Name: "settings.reset", Description: "Reset a setting to its default: (key)", Handler: p.reset},
		{Name: "settings.list", Description: "List settings: (category?)", Handler: p.list},
		{Name: "settings.categories", Description: "List setting categories", Handler: p.categories},
	}
}

// Get returns the setting stored under key
func (p *Provider) Get(key string) (Setting, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.cache[key]
	return s, ok
}

// Bool returns a boolean setting, or def when unset or not boolean
func (p *Provider) Bool(key string, def bool) bool {
	s, ok := p.Get(key)
	if !ok {
		return def
	}
	b, ok := s.Value.(bool)
	if !ok {
		return def
	}
	return b
}

// Set stores value under key and persists it
func (p *Provider) Set(key string, value interface{}) (Setting, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.cache[key]
	if ok {
		s.Value = value
	} else {
		s = Setting{Key: key, Value: value, Type: inferType(value), Category: category(key)}
	}
	if p.store != nil {
		if err := p.store.SetJSON(keyPrefix+key, s); err != nil {
			return Setting{}, fmt.Errorf("persist %s: %w", key, err)
		}
	}
	p.cache[key] = s
	return s, nil
}

// Reset restores a default, or removes a custom setting
func (p *Provider) Reset(key string) (Setting, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.cache[key]
	if !ok {
		return Setting{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if p.store != nil {
		if err := p.store.Delete(keyPrefix + key); err != nil {
			return Setting{}, fmt.Errorf("reset %s: %w", key, err)
		}
	}
	if def, builtin := defaults()[key]; builtin {
		p.cache[key] = def
		return def, nil
	}
	delete(p.cache, key)
	s.Value = nil
	return s, nil
}

// List returns settings sorted by key, optionally within one category
func (p *Provider) List(cat string) []Setting {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Setting, 0, len(p.cache))
	for _, s := range p.cache {
		if cat == "" || s.Category == cat {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (p *Provider) get(_ context.Context, args ...interface{}) (interface{}, error) {
	key, ok := ipc.StringArg(args, 0)
	if !ok || key == "" {
		return nil, fmt.Errorf("settings.get: key required")
	}
	s, found := p.Get(key)
	if !found {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return s, nil
}

func (p *Provider) set(ctx context.Context, args ...interface{}) (interface{}, error) {
	key, ok := ipc.StringArg(args, 0)
	if !ok || key == "" {
		return nil, fmt.Errorf("settings.set: key required")
	}
	if len(args) < 2 || args[1] == nil {
		return nil, fmt.Errorf("settings.set: value required")
	}
	if err := authorize(ctx, key); err != nil {
		return nil, err
	}
	return p.Set(key, args[1])
}

func (p *Provider) reset(ctx context.Context, args ...interface{}) (interface{}, error) {
	key, ok := ipc.StringArg(args, 0)
	if !ok || key == "" {
		return nil, fmt.Errorf("settings.reset: key required")
	}
	if err := authorize(ctx, key); err != nil {
		return nil, err
	}
	return p.Reset(key)
}

func (p *Provider) list(_ context.Context, args ...interface{}) (interface{}, error) {
	cat, _ := ipc.StringArg(args, 0)
	settings := p.List(cat)
	return map[string]interface{}{"settings": settings, "count": len(settings)}, nil
}

func (p *Provider) categories(_ context.Context, _ ...interface{}) (interface{}, error) {
	seen := make(map[string]bool)
	for _, s := range p.List("") {
		seen[s.Category] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// authorize confines extension writes to ext.<id>.*; host callers are unrestricted
func authorize(ctx context.Context, key string) error {
	extID, ok := capability.ExtensionIDFromContext(ctx)
	if !ok {
		return nil
	}
	if !strings.HasPrefix(key, "ext."+extID+".") {
		return fmt.Errorf("%s: %w", key, ErrForbidden)
	}
	return nil
}

func category(key string) string {
	if strings.HasPrefix(key, "ext.") {
		return "extensions"
	}
	return "custom"
}

func inferType(value interface{}) string {
	switch value.(type) {
	case bool:
		return "boolean"
	case float64, float32, int, int64:
		return "number"
	case string:
		return "string"
	default:
		return "json"
	}
}
