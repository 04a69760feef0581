package extension

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/types"
)

var (
	ErrNotInstalled    = errors.New("extension not installed")
	ErrDisabled        = errors.New("extension disabled")
	ErrShutdown        = errors.New("runtime shut down")
	ErrInstallDeclined = errors.New("install declined")
)

// PackageService manages installed extension packages and their flags
type PackageService interface {
	GetInstalledExtensions(ctx context.Context) ([]types.ExtensionDescriptor, error)
	SetExtensionEnabled(ctx context.Context, id string, enabled bool) error
	InstallExtensionPackage(ctx context.Context, path string) (*types.ExtensionDescriptor, error)
	RemoveExtensionPackage(ctx context.Context, id string) error
}

// ContentFetcher resolves extension entry source text
type ContentFetcher interface {
	FetchEntrySource(ctx context.Context, localPath, main string) (string, error)
}

// FileEventSource reports extension packages dropped by the host
type FileEventSource interface {
	OnNewExtensionFileDetected(handler func(path string)) (unsubscribe func())
}

// Confirmer asks the user whether a package may be installed
type Confirmer interface {
	ConfirmInstall(ctx context.Context, path string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, path string) (bool, error)

// ConfirmInstall calls f
func (f ConfirmFunc) ConfirmInstall(ctx context.Context, path string) (bool, error) {
	return f(ctx, path)
}

// Fixed confirmers for unattended hosts
var (
	AutoConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })
	DenyConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil })
)
