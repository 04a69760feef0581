// Package capability builds the host API handed to extension code.
//
// Each API is bound to one extension identity at construction and exposes a
// fixed set of groups: UI (views, toasts), IPC (invoke, subscribe),
// Launcher (read-only process queries), Storage (namespaced key/value) and
// Meta (identity). Construction is pure; nothing is touched until an
// extension calls a method.
//
//	factory := capability.NewFactory(capability.Services{
//	    Views:     runtime,
//	    Notifier:  toasts,
//	    Bridge:    bridge,
//	    Store:     kv,
//	    Processes: launcher,
//	})
//	api := factory.CreateAPI("clock", "/srv/extensions/clock")
//	api.Storage.Set("lastTick", 42)
package capability
