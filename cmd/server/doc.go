// Package main is the entry point of the extension host.
//
// The host discovers installed extension packages, loads the enabled ones
// into sandboxed JavaScript runtimes and serves their views to the UI shell.
//
//	UI shell ⇄ REST + /stream websocket ⇄ extension host ⇄ extensions (goja)
//
// Configuration:
//   - Environment variables (12-factor), see internal/infrastructure/config
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -root /var/lib/exthost
//
//	# Development mode (colored logs, debug level), auto-approve installs
//	./server -dev -confirm auto
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
