package capability

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/ui"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/types"
)

// ViewSink accepts view registrations on behalf of an extension
type ViewSink interface {
	RegisterView(extensionID, slot string, component ui.Component)
}

// Notifier delivers toasts to the user
type Notifier interface {
	Toast(extensionID, message string, toastType types.ToastType)
}

// Bridge routes inter-process calls and extension channels
type Bridge interface {
	HasHostOperation(name string) bool
	InvokeHostOperation(ctx context.Context, name string, args ...interface{}) (interface{}, error)
	InvokeExtensionChannel(ctx context.Context, extensionID, channel string, args ...interface{}) (interface{}, error)
	SubscribeExtensionChannel(extensionID, channel string, callback func(args ...interface{})) (unsubscribe func())
}

// KVStore persists raw values under string keys
type KVStore interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
}

// ProcessService answers read-only process queries
type ProcessService interface {
	GetActiveProcesses(ctx context.Context) ([]types.ProcessInfo, error)
	GetProcessStats(ctx context.Context, pid int) (*types.ProcessStats, error)
}

// Services are the host collaborators an API delegates to.
// A nil service disables the corresponding capability without panicking.
type Services struct {
	Views     ViewSink
	Notifier  Notifier
	Bridge    Bridge
	Store     KVStore
	Processes ProcessService
}
