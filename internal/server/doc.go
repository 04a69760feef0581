// Package server wires the extension host together.
//
// Server Lifecycle:
//  1. Resolve the data layout (extensions, storage, staging, inbox)
//  2. Build host services: storage, packaging, content, ipc bridge,
//     system + launcher operations, toasts
//  3. Create the goja loader and the extension runtime
//  4. Mount HTTP routes, middleware and the websocket hub
//  5. Start listening, then reconcile installed extensions in the background
//  6. Watch the inbox for dropped packages
//  7. On shutdown: stop HTTP, unload every extension, stop host processes
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.New(cfg, logger)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
