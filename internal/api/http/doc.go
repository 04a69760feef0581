// Package http exposes the extension host over REST.
//
// Every failure is rendered as types.Result{success:false, error}; callers
// never see a stack or a Go error type.
//
// Routes (registered by Register):
//
//	GET    /health
//	GET    /extensions                     installed descriptors + status
//	GET    /extensions/:id                 one status
//	POST   /extensions/refresh
//	POST   /extensions/install             {path}
//	POST   /extensions/:id/toggle          {enabled}
//	POST   /extensions/:id/reload
//	DELETE /extensions/:id
//	GET    /slots                          slot names
//	GET    /slots/:slot                    registrations
//	GET    /slots/:slot/render             sanitized HTML
//	GET    /toasts
//	GET    /processes, /processes/:pid
//	GET    /operations, POST /operations/:name
//	GET    /logs, POST /logs
//	GET    /metrics/summary
package http
