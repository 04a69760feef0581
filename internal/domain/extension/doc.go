// Package extension owns the lifecycle of installed extensions.
//
// A Runtime reconciles the installed packages reported by a PackageService
// with the set of loaded modules. Enabled extensions are fetched, evaluated
// by a loader.ModuleLoader and activated with a capability API; disabled ones
// are deactivated and their views removed from the slot registry.
//
// State machine per extension id:
//
//	disabled -> loading -> active | failed
//	active -> unloading -> disabled
//
// Failed is terminal until an explicit toggle-on, reload or fresh install.
//
// Errors raised by extension code are logged with the extension id and
// recorded in its status. Only host-side failures (listing, persistence,
// install) are returned to callers.
//
// Example Usage:
//
//	rt := extension.New(extension.Dependencies{
//	    Packages: packages,
//	    Content:  content,
//	    Loader:   loader.NewGojaLoader(loader.DefaultConfig()),
//	    Views:    slots.NewRegistry(),
//	}, logger).WithMetrics(metrics)
//
//	if err := rt.Refresh(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	views := rt.GetViews("sidebar.bottom")
package extension
