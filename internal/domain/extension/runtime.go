package extension

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/capability"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/loader"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/slots"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/ui"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/types"
)

// Record is the bookkeeping entry of a loaded extension
type Record struct {
	Descriptor types.ExtensionDescriptor
	Module     loader.Module
	API        *capability.API
	Generation uint64
	LoadedAt   time.Time

	closing bool // Protected by Runtime.mu
}

// entry tracks one extension id across loads
type entry struct {
	id     string
	mu     sync.Mutex            // Serializes transitions of this id
	stamp  uint64                // Generation of the last explicit toggle; protected by mu
	status types.ExtensionStatus // Protected by Runtime.mu
}

// Dependencies are the collaborators a Runtime drives
type Dependencies struct {
	Packages PackageService
	Content  ContentFetcher
	Loader   loader.ModuleLoader

	// Host services handed to extensions. Views is ignored: registrations
	// always go through the runtime's gate into Views below.
	Services capability.Services

	Views     *slots.Registry
	Confirmer Confirmer
}

// Runtime reconciles installed extensions with loaded modules.
// Registry subscribers must not call back into the Runtime.
type Runtime struct {
	mu          sync.RWMutex
	descriptors []types.ExtensionDescriptor // Protected by mu
	records     map[string]*Record          // Protected by mu
	entries     map[string]*entry           // Protected by mu
	loading     bool                        // Protected by mu
	closed      bool                        // Protected by mu
	unsubs      []func()                    // Protected by mu
	generation  atomic.Uint64

	packages  PackageService
	content   ContentFetcher
	loader    loader.ModuleLoader
	services  capability.Services
	views     *slots.Registry
	confirmer Confirmer
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	tracer    *tracing.Tracer

	// Cancelled by Shutdown; parents background installs
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a runtime. Nothing is loaded until Refresh.
func New(deps Dependencies, logger *logging.Logger) *Runtime {
	if logger == nil {
		logger = logging.NewNop()
	}
	views := deps.Views
	if views == nil {
		views = slots.NewRegistry()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		records:   make(map[string]*Record),
		entries:   make(map[string]*entry),
		loading:   true,
		packages:  deps.Packages,
		content:   deps.Content,
		loader:    deps.Loader,
		services:  deps.Services,
		views:     views,
		confirmer: deps.Confirmer,
		logger:    logger.Named("runtime"),
		ctx:       ctx,
		cancel:    cancel,
	}

	r.unsubs = append(r.unsubs, views.Subscribe(func(c slots.Change) {
		if r.metrics != nil {
			r.metrics.SetSlotViews(c.Slot, c.Views)
		}
	}))
	return r
}

// WithMetrics adds metrics tracking to the runtime
func (r *Runtime) WithMetrics(metrics *monitoring.Metrics) *Runtime {
	r.metrics = metrics
	return r
}

// WithTracer records a span per load and unload
func (r *Runtime) WithTracer(tracer *tracing.Tracer) *Runtime {
	r.tracer = tracer
	return r
}

// Views returns the slot registry the runtime writes to
func (r *Runtime) Views() *slots.Registry {
	return r.views
}

// Refresh lists installed packages and brings loaded modules in line with
// their enabled flags. Extension failures are recorded, not returned.
func (r *Runtime) Refresh(ctx context.Context) error {
	if r.isClosed() {
		return ErrShutdown
	}
	defer r.finishInitialLoad()

	// Toggles stamped after this point win over the listing below
	gen := r.generation.Load()

	descs, err := r.packages.GetInstalledExtensions(ctx)
	if err != nil {
		r.recordTransition("refresh", "error")
		return fmt.Errorf("list installed extensions: %w", err)
	}
	r.setDescriptors(descs)

	seen := make(map[string]bool, len(descs))
	for _, desc := range descs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if desc.ID == "" {
			r.logger.Warn("skipping descriptor without id", zap.String("local_path", desc.LocalPath))
			continue
		}
		seen[desc.ID] = true
		if err := r.reconcile(ctx, desc, gen); err != nil {
			return err
		}
	}

	// Packages removed behind our back
	for _, extID := range r.activeIDs() {
		if seen[extID] {
			continue
		}
		e := r.entry(extID)
		e.mu.Lock()
		if e.stamp <= gen {
			r.unload(ctx, e)
		}
		e.mu.Unlock()
	}

	r.prune()
	r.updateCounts()
	r.recordTransition("refresh", "ok")
	return nil
}

func (r *Runtime) reconcile(ctx context.Context, desc types.ExtensionDescriptor, gen uint64) error {
	e := r.entry(desc.ID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stamp > gen {
		r.logger.Debug("skipping stale descriptor", zap.String(logging.FieldExtensionID, desc.ID))
		return nil
	}

	active := r.isActive(desc.ID)
	switch {
	case desc.Enabled && !active:
		if r.state(e) == types.StateFailed {
			return nil
		}
		return r.load(ctx, e, desc)
	case !desc.Enabled && active:
		r.unload(ctx, e)
	}
	return nil
}

// ToggleExtension persists the enabled flag, then loads or unloads.
// A persistence failure leaves the runtime unchanged.
func (r *Runtime) ToggleExtension(ctx context.Context, extID string, enabled bool) error {
	if r.isClosed() {
		return ErrShutdown
	}
	desc, err := r.lookup(ctx, extID)
	if err != nil {
		return err
	}

	e := r.entry(extID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := r.packages.SetExtensionEnabled(ctx, extID, enabled); err != nil {
		r.recordTransition("toggle", "error")
		return persistenceError(extID, err)
	}
	e.stamp = r.generation.Add(1)

	desc.Enabled = enabled
	r.updateDescriptor(desc)
	r.recordTransition("toggle", "ok")

	defer r.updateCounts()
	if enabled {
		r.clearFailure(e)
		return r.load(ctx, e, desc)
	}
	r.unload(ctx, e)
	r.update(e, func(s *types.ExtensionStatus) {
		s.State = types.StateDisabled
	})
	return nil
}

// Load loads desc without touching its persisted flag. Loading an active
// extension is a no-op.
func (r *Runtime) Load(ctx context.Context, desc types.ExtensionDescriptor) error {
	if desc.ID == "" {
		return fmt.Errorf("%w: empty id", ErrNotInstalled)
	}
	e := r.entry(desc.ID)
	e.mu.Lock()
	defer e.mu.Unlock()
	defer r.updateCounts()

	r.clearFailure(e)
	return r.load(ctx, e, desc)
}

// Unload deactivates extID and removes its views. Unknown ids are a no-op.
func (r *Runtime) Unload(ctx context.Context, extID string) {
	e := r.entry(extID)
	e.mu.Lock()
	defer e.mu.Unlock()
	defer r.updateCounts()

	r.unload(ctx, e)
}

// Reload unloads and loads an enabled extension with fresh source
func (r *Runtime) Reload(ctx context.Context, extID string) error {
	if r.isClosed() {
		return ErrShutdown
	}
	desc, err := r.lookup(ctx, extID)
	if err != nil {
		return err
	}
	if !desc.Enabled {
		return fmt.Errorf("%w: %s", ErrDisabled, extID)
	}

	e := r.entry(extID)
	e.mu.Lock()
	defer e.mu.Unlock()
	defer r.updateCounts()

	r.unload(ctx, e)
	r.clearFailure(e)
	r.recordTransition("reload", "ok")
	return r.load(ctx, e, desc)
}

// Shutdown unloads every extension and stops accepting work
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()

	r.cancel()
	for _, unsubscribe := range unsubs {
		unsubscribe()
	}

	ids := r.activeIDs()
	r.logger.Info("shutting down extensions", zap.Int("active", len(ids)))
	for _, extID := range ids {
		e := r.entry(extID)
		e.mu.Lock()
		r.unload(ctx, e)
		e.mu.Unlock()
	}
	r.updateCounts()
	return ctx.Err()
}

// viewGate binds registrations to one loaded record, so late calls from an
// unloaded module never land in the registry
type viewGate struct {
	r   *Runtime
	rec *Record
}

func (g *viewGate) RegisterView(extID, slot string, component ui.Component) {
	g.r.mu.RLock()
	defer g.r.mu.RUnlock()

	if g.r.records[extID] != g.rec || g.rec.closing {
		g.r.logger.Debug("dropping view from unloaded module",
			zap.String(logging.FieldExtensionID, extID),
			zap.String("slot", slot),
			zap.Uint64("generation", g.rec.Generation),
		)
		return
	}
	g.r.views.RegisterView(extID, slot, component)
}

// GetViews returns the registrations of slot, never nil
func (r *Runtime) GetViews(slot string) []slots.ViewRegistration {
	return r.views.GetViews(slot)
}

// InstalledExtensions returns the descriptors from the last listing
func (r *Runtime) InstalledExtensions() []types.ExtensionDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.ExtensionDescriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Loading reports whether the initial refresh is still running
func (r *Runtime) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

// IsActive reports whether extID has a loaded record
func (r *Runtime) IsActive(extID string) bool {
	return r.isActive(extID)
}

// Status returns the runtime state of extID
func (r *Runtime) Status(extID string) (types.ExtensionStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[extID]
	if !ok {
		return types.ExtensionStatus{}, false
	}
	return r.snapshot(e), true
}

// Statuses returns every known extension's state sorted by id
func (r *Runtime) Statuses() []types.ExtensionStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.ExtensionStatus, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, r.snapshot(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats returns runtime statistics
func (r *Runtime) Stats() types.Stats {
	r.mu.RLock()
	stats := types.Stats{
		Installed: len(r.descriptors),
		Active:    len(r.records),
	}
	for _, e := range r.entries {
		if e.status.State == types.StateFailed {
			stats.Failed++
		}
	}
	r.mu.RUnlock()

	names := r.views.Slots()
	stats.Slots = len(names)
	for _, slot := range names {
		stats.Views += len(r.views.GetViews(slot))
	}
	return stats
}

// snapshot copies e's status; caller holds r.mu
func (r *Runtime) snapshot(e *entry) types.ExtensionStatus {
	s := e.status
	s.Exports = append([]string(nil), e.status.Exports...)
	s.Views = r.views.Count(e.id)
	return s
}

func (r *Runtime) entry(extID string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[extID]
	if !ok {
		e = &entry{
			id: extID,
			status: types.ExtensionStatus{
				ID:        extID,
				State:     types.StateDisabled,
				UpdatedAt: time.Now(),
			},
		}
		r.entries[extID] = e
	}
	return e
}

// update applies fn under r.mu; fn must not call into a module
func (r *Runtime) update(e *entry, fn func(s *types.ExtensionStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&e.status)
	e.status.UpdatedAt = time.Now()
}

func (r *Runtime) state(e *entry) types.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return e.status.State
}

func (r *Runtime) clearFailure(e *entry) {
	r.update(e, func(s *types.ExtensionStatus) {
		if s.State == types.StateFailed {
			s.State = types.StateDisabled
		}
		s.LastError = nil
		s.ErrorKind = ""
	})
}

func (r *Runtime) isActive(extID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[extID]
	return ok
}

func (r *Runtime) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *Runtime) activeIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.records))
	for extID := range r.records {
		ids = append(ids, extID)
	}
	sort.Strings(ids)
	return ids
}

func (r *Runtime) finishInitialLoad() {
	r.mu.Lock()
	r.loading = false
	r.mu.Unlock()
}

func (r *Runtime) setDescriptors(descs []types.ExtensionDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.descriptors = append(r.descriptors[:0:0], descs...)
}

// prune forgets ids that are neither installed nor loaded
func (r *Runtime) prune() {
	r.mu.Lock()
	defer r.mu.Unlock()

	installed := make(map[string]bool, len(r.descriptors))
	for _, d := range r.descriptors {
		installed[d.ID] = true
	}
	for extID := range r.entries {
		if _, loaded := r.records[extID]; !installed[extID] && !loaded {
			delete(r.entries, extID)
		}
	}
}

func (r *Runtime) updateDescriptor(desc types.ExtensionDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.descriptors {
		if r.descriptors[i].ID == desc.ID {
			r.descriptors[i] = desc
			return
		}
	}
	r.descriptors = append(r.descriptors, desc)
}

// lookup finds extID in the cached listing, re-listing on a miss
func (r *Runtime) lookup(ctx context.Context, extID string) (types.ExtensionDescriptor, error) {
	if desc, ok := r.cached(extID); ok {
		return desc, nil
	}

	descs, err := r.packages.GetInstalledExtensions(ctx)
	if err != nil {
		return types.ExtensionDescriptor{}, fmt.Errorf("list installed extensions: %w", err)
	}
	r.setDescriptors(descs)

	if desc, ok := r.cached(extID); ok {
		return desc, nil
	}
	return types.ExtensionDescriptor{}, fmt.Errorf("%w: %s", ErrNotInstalled, extID)
}

func (r *Runtime) cached(extID string) (types.ExtensionDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.descriptors {
		if d.ID == extID {
			return d, true
		}
	}
	return types.ExtensionDescriptor{}, false
}

func (r *Runtime) updateCounts() {
	if r.metrics == nil {
		return
	}
	stats := r.Stats()
	r.metrics.SetExtensionCounts(stats.Active, stats.Failed)
}

func (r *Runtime) recordTransition(transition, result string) {
	if r.metrics != nil {
		r.metrics.RecordTransition(transition, result)
	}
}
