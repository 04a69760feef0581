package extension

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/capability"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/loader"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/exterr"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/types"
)

// load brings desc from disabled to active or failed; caller holds e.mu.
// Only ErrShutdown is returned: everything else lands in the status.
func (r *Runtime) load(ctx context.Context, e *entry, desc types.ExtensionDescriptor) error {
	if r.isActive(desc.ID) {
		return nil
	}
	if r.isClosed() {
		return ErrShutdown
	}

	gen := r.generation.Add(1)
	r.update(e, func(s *types.ExtensionStatus) {
		s.State = types.StateLoading
		s.Generation = gen
		s.LastError = nil
		s.ErrorKind = ""
	})

	tags := map[string]string{logging.FieldExtensionID: desc.ID, "version": desc.Version}
	err := r.tracer.Trace(ctx, "extension.load", tags, func(ctx context.Context) error {
		return r.loadModule(ctx, e, desc, gen)
	})

	switch {
	case errors.Is(err, ErrShutdown):
		r.update(e, func(s *types.ExtensionStatus) { s.State = types.StateDisabled })
		return err
	case err != nil:
		r.fail(e, err)
		r.recordTransition("load", "failed")
	default:
		r.recordTransition("load", "ok")
	}
	return nil
}

// loadModule fetches, evaluates and activates desc. Hook errors are recorded
// here and leave the extension active.
func (r *Runtime) loadModule(ctx context.Context, e *entry, desc types.ExtensionDescriptor, gen uint64) error {
	logger := r.logger.ForExtension(desc.ID)

	text, err := r.content.FetchEntrySource(ctx, desc.LocalPath, desc.EntryFile())
	if err != nil {
		return exterr.New(exterr.KindEntryNotFound, desc.ID, err)
	}

	mod, err := r.loader.Evaluate(ctx, loader.Source{
		ExtensionID: desc.ID,
		Filename:    desc.EntryFile(),
		Text:        text,
	})
	if err != nil {
		if _, ok := exterr.KindOf(err); !ok {
			err = exterr.New(exterr.KindExtensionLoad, desc.ID, err)
		}
		return err
	}

	rec := &Record{
		Descriptor: desc,
		Module:     mod,
		Generation: gen,
		LoadedAt:   time.Now(),
	}
	services := r.services
	services.Views = &viewGate{r: r, rec: rec}
	rec.API = capability.NewFactory(services).CreateAPI(desc.ID, desc.LocalPath)

	// Stored before hooks run so registerView from activate passes the gate
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		mod.Close()
		return ErrShutdown
	}
	r.records[desc.ID] = rec
	r.mu.Unlock()

	var hookErr error
	kind := mod.Kind()
	switch kind {
	case loader.LifecycleNone:
		logger.Warn("extension exports no lifecycle hook", zap.Strings("exports", mod.Exports()))
	default:
		timer := monitoring.NewTimer(r.metrics, kind.String())
		hookErr = mod.Activate(ctx, rec.API)
		elapsed := timer.Stop()
		if hookErr != nil {
			logger.Error("extension activation failed",
				zap.String("hook", kind.String()),
				zap.Duration("elapsed", elapsed),
				zap.Error(hookErr),
			)
			r.recordTransition("activate", "failed")
		}
	}

	// Module calls take the module lock, so they stay outside r.mu
	exports := mod.Exports()
	now := time.Now()
	r.update(e, func(s *types.ExtensionStatus) {
		s.State = types.StateActive
		s.Lifecycle = kind.String()
		s.Exports = exports
		s.ActiveAt = &now
		if hookErr != nil {
			setError(s, hookErr)
		}
	})
	logger.Info("extension active",
		zap.String("version", desc.Version),
		zap.String("lifecycle", kind.String()),
		zap.Uint64("generation", gen),
	)
	return nil
}

// unload deactivates e's record and removes its views; caller holds e.mu.
// Completes even when deactivate fails or times out.
func (r *Runtime) unload(ctx context.Context, e *entry) {
	r.mu.RLock()
	rec := r.records[e.id]
	r.mu.RUnlock()
	if rec == nil {
		return
	}

	logger := r.logger.ForExtension(e.id)
	r.update(e, func(s *types.ExtensionStatus) { s.State = types.StateUnloading })

	tags := map[string]string{logging.FieldExtensionID: e.id}
	hookErr := r.tracer.Trace(ctx, "extension.unload", tags, func(ctx context.Context) error {
		if !rec.Module.HasDeactivate() {
			return nil
		}
		timer := monitoring.NewTimer(r.metrics, "deactivate")
		defer timer.Stop()
		return rec.Module.Deactivate(ctx)
	})
	if hookErr != nil {
		logger.Warn("extension deactivation failed", zap.Error(hookErr))
	}

	r.mu.Lock()
	rec.closing = true
	removed := r.views.RemoveExtension(e.id)
	delete(r.records, e.id)
	e.status.State = types.StateDisabled
	e.status.ActiveAt = nil
	e.status.UpdatedAt = time.Now()
	if hookErr != nil {
		setError(&e.status, hookErr)
	}
	r.mu.Unlock()

	// Lock order is module before runtime, so close outside r.mu
	rec.Module.Close()
	rec.API.Release()

	if hookErr != nil {
		r.recordTransition("unload", "deactivate_failed")
	} else {
		r.recordTransition("unload", "ok")
	}
	logger.Info("extension unloaded", zap.Int("views_removed", removed))
}

// fail marks e failed with err and logs it
func (r *Runtime) fail(e *entry, err error) {
	r.logger.ForExtension(e.id).Error("extension load failed",
		zap.String("kind", errorKind(err)),
		zap.Error(err),
	)
	r.update(e, func(s *types.ExtensionStatus) {
		s.State = types.StateFailed
		s.ActiveAt = nil
		setError(s, err)
	})
}

func setError(s *types.ExtensionStatus, err error) {
	msg := err.Error()
	s.LastError = &msg
	s.ErrorKind = errorKind(err)
}

func errorKind(err error) string {
	if kind, ok := exterr.KindOf(err); ok {
		return string(kind)
	}
	return "unknown"
}

func persistenceError(extID string, err error) error {
	return exterr.New(exterr.KindPersistence, extID, err)
}
