package capability

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/ui"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/types"
)

var (
	ErrNoBridge    = errors.New("ipc bridge unavailable")
	ErrNoProcesses = errors.New("process service unavailable")
	ErrNoStore     = errors.New("storage unavailable")
	ErrReleased    = errors.New("api released")
)

// StorageKey namespaces key for extensionID
func StorageKey(extensionID, key string) string {
	return "ext:" + extensionID + ":" + key
}

type ctxKey struct{}

// WithExtensionID records the calling extension on ctx
func WithExtensionID(ctx context.Context, extensionID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, extensionID)
}

// ExtensionIDFromContext returns the calling extension, if any
func ExtensionIDFromContext(ctx context.Context) (string, bool) {
	extensionID, ok := ctx.Value(ctxKey{}).(string)
	return extensionID, ok && extensionID != ""
}

// Factory creates extension-scoped APIs
type Factory struct {
	services Services
}

// NewFactory creates a factory over the given host services
func NewFactory(services Services) *Factory {
	return &Factory{services: services}
}

// CreateAPI builds the capability surface for one extension
func (f *Factory) CreateAPI(extensionID, localPath string) *API {
	api := &API{
		Meta: Meta{ID: extensionID, LocalPath: localPath},
		subs: make(map[int]func()),
	}
	api.UI = &UI{extensionID: extensionID, views: f.services.Views, notifier: f.services.Notifier}
	api.IPC = &IPC{extensionID: extensionID, bridge: f.services.Bridge, api: api}
	api.Launcher = &Launcher{processes: f.services.Processes}
	api.Storage = &Storage{extensionID: extensionID, store: f.services.Store}
	return api
}

// Meta is read-only identity information
type Meta struct {
	ID        string `json:"id"`
	LocalPath string `json:"localPath"`
}

// API is the capability surface bound to one extension
type API struct {
	UI       *UI
	IPC      *IPC
	Launcher *Launcher
	Storage  *Storage
	Meta     Meta

	mu       sync.Mutex
	subs     map[int]func()
	nextSub  int
	released bool
}

// Release drops every subscription made through this API
func (a *API) Release() {
	a.mu.Lock()
	subs := a.subs
	a.subs = make(map[int]func())
	a.released = true
	a.mu.Unlock()

	for _, unsubscribe := range subs {
		unsubscribe()
	}
}

// Subscriptions returns the number of live IPC subscriptions
func (a *API) Subscriptions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subs)
}

func (a *API) track(unsubscribe func()) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		unsubscribe()
		return nil, ErrReleased
	}
	subID := a.nextSub
	a.nextSub++
	a.subs[subID] = unsubscribe

	return func() {
		a.mu.Lock()
		fn, ok := a.subs[subID]
		delete(a.subs, subID)
		a.mu.Unlock()
		if ok {
			fn()
		}
	}, nil
}

// UI registers views and raises toasts
type UI struct {
	extensionID string
	views       ViewSink
	notifier    Notifier
}

// RegisterView contributes component to slot. Malformed input is accepted
// here and degrades at render time.
func (u *UI) RegisterView(slot string, component ui.Component) {
	if u.views == nil {
		return
	}
	u.views.RegisterView(u.extensionID, slot, component)
}

// Toast shows a notification prefixed with the extension id. Never fails.
func (u *UI) Toast(message string, toastType string) {
	if u.notifier == nil {
		return
	}
	u.notifier.Toast(u.extensionID, fmt.Sprintf("[%s] %s", u.extensionID, message), types.ParseToastType(toastType))
}

// IPC invokes host operations and extension channels
type IPC struct {
	extensionID string
	bridge      Bridge
	api         *API
}

// Invoke calls a host operation when channel names one, otherwise the
// extension-scoped channel
func (i *IPC) Invoke(ctx context.Context, channel string, args ...interface{}) (interface{}, error) {
	if i.bridge == nil {
		return nil, ErrNoBridge
	}
	ctx = WithExtensionID(ctx, i.extensionID)
	if i.bridge.HasHostOperation(channel) {
		return i.bridge.InvokeHostOperation(ctx, channel, args...)
	}
	return i.bridge.InvokeExtensionChannel(ctx, i.extensionID, channel, args...)
}

// On subscribes callback to inbound messages on channel
func (i *IPC) On(channel string, callback func(args ...interface{})) (func(), error) {
	if i.bridge == nil {
		return nil, ErrNoBridge
	}
	unsubscribe := i.bridge.SubscribeExtensionChannel(i.extensionID, channel, callback)
	if unsubscribe == nil {
		unsubscribe = func() {}
	}
	return i.api.track(unsubscribe)
}

// Launcher exposes read-only process queries
type Launcher struct {
	processes ProcessService
}

// GetActiveProcesses lists host processes
func (l *Launcher) GetActiveProcesses(ctx context.Context) ([]types.ProcessInfo, error) {
	if l.processes == nil {
		return nil, ErrNoProcesses
	}
	return l.processes.GetActiveProcesses(ctx)
}

// GetProcessStats returns statistics for pid
func (l *Launcher) GetProcessStats(ctx context.Context, pid int) (*types.ProcessStats, error) {
	if l.processes == nil {
		return nil, ErrNoProcesses
	}
	return l.processes.GetProcessStats(ctx, pid)
}

// Storage is key/value storage namespaced to the extension
type Storage struct {
	extensionID string
	store       KVStore
}

// Get returns the stored value, or nil on a miss or an unreadable value
func (s *Storage) Get(key string) interface{} {
	if s.store == nil {
		return nil
	}
	data, ok, err := s.store.Get(StorageKey(s.extensionID, key))
	if err != nil || !ok {
		return nil
	}

	var value interface{}
	if err := sonic.Unmarshal(data, &value); err != nil {
		return nil
	}
	return value
}

// Set serializes value and stores it
func (s *Storage) Set(key string, value interface{}) error {
	if s.store == nil {
		return ErrNoStore
	}
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("serialize %q: %w", key, err)
	}
	if err := s.store.Set(StorageKey(s.extensionID, key), data); err != nil {
		return fmt.Errorf("store %q: %w", key, err)
	}
	return nil
}
