package extension

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/exterr"
)

// HandleNewExtensionFile asks for confirmation, installs the package at path
// and refreshes. A fresh install replaces a loaded copy and clears a failure.
func (r *Runtime) HandleNewExtensionFile(ctx context.Context, path string) error {
	if r.isClosed() {
		return ErrShutdown
	}
	source := installSource(path)
	logger := r.logger.With(zap.String("path", path))

	approved, err := r.confirm(ctx, path)
	if err != nil {
		r.recordInstall(source, "error")
		return fmt.Errorf("confirm install: %w", err)
	}
	if !approved {
		logger.Info("extension install declined")
		r.recordInstall(source, "declined")
		return ErrInstallDeclined
	}

	desc, err := r.packages.InstallExtensionPackage(ctx, path)
	if err != nil {
		r.recordInstall(source, "error")
		return exterr.New(exterr.KindPersistence, "", fmt.Errorf("install %s: %w", path, err))
	}
	r.recordInstall(source, "ok")
	logger.Info("extension installed",
		zap.String(logging.FieldExtensionID, desc.ID),
		zap.String("version", desc.Version),
		zap.String("digest", desc.Digest),
	)

	e := r.entry(desc.ID)
	e.mu.Lock()
	r.unload(ctx, e)
	r.clearFailure(e)
	e.mu.Unlock()

	return r.Refresh(ctx)
}

func (r *Runtime) confirm(ctx context.Context, path string) (bool, error) {
	if r.confirmer == nil {
		r.logger.Warn("no install confirmer configured, declining", zap.String("path", path))
		return false, nil
	}
	return r.confirmer.ConfirmInstall(ctx, path)
}

// WatchInstallEvents installs every file source reports until Shutdown
func (r *Runtime) WatchInstallEvents(source FileEventSource) (unsubscribe func()) {
	unsubscribe = source.OnNewExtensionFileDetected(func(path string) {
		go func() {
			err := r.HandleNewExtensionFile(r.ctx, path)
			if err != nil && !errors.Is(err, ErrInstallDeclined) && !errors.Is(err, ErrShutdown) {
				r.logger.Error("install from file event failed", zap.String("path", path), zap.Error(err))
			}
		}()
	})

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		unsubscribe()
		return func() {}
	}
	r.unsubs = append(r.unsubs, unsubscribe)
	r.mu.Unlock()
	return unsubscribe
}

// RemoveExtension unloads extID, deletes its package and refreshes
func (r *Runtime) RemoveExtension(ctx context.Context, extID string) error {
	if r.isClosed() {
		return ErrShutdown
	}
	if _, err := r.lookup(ctx, extID); err != nil {
		return err
	}

	e := r.entry(extID)
	e.mu.Lock()
	r.unload(ctx, e)
	err := r.packages.RemoveExtensionPackage(ctx, extID)
	e.mu.Unlock()

	if err != nil {
		r.recordTransition("remove", "error")
		return persistenceError(extID, err)
	}
	r.recordTransition("remove", "ok")
	r.logger.ForExtension(extID).Info("extension removed")
	return r.Refresh(ctx)
}

func installSource(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return "url"
	}
	return "file"
}

func (r *Runtime) recordInstall(source, result string) {
	if r.metrics != nil {
		r.metrics.RecordInstall(source, result)
	}
}
