// Package ipc provides the host side of extension inter-process calls.
//
// The Bridge holds two tables:
//   - Host operations: named functions any extension may invoke
//     (system.time, launcher.list, ...). Providers contribute them in bulk.
//   - Extension channels: per-extension handlers for calls an extension
//     makes on its own channels, plus subscriptions for messages the host
//     publishes into an extension.
//
// Channels are scoped by extension id, so two extensions using the same
// channel name never see each other's traffic.
//
// Example Usage:
//
//	bridge := ipc.NewBridge(logger)
//	bridge.Register(system.NewProvider())
//	bridge.HandleChannel("refresh", func(ctx context.Context, extID string, args ...interface{}) (interface{}, error) {
//	    return nil, runtime.Reload(ctx, extID)
//	})
//	n := bridge.Publish("clock", "tick", 1)
package ipc
