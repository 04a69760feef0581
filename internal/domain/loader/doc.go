/*
Package loader evaluates extension entry sources and exposes their lifecycle.

# Overview

A ModuleLoader turns source text into a Module. The goja implementation
gives every extension its own VM, guarded by a mutex so that exactly one
goroutine runs extension code at a time. Host callbacks (timers, IPC
results, inbound messages) re-enter the VM through the same mutex.

The entry source is evaluated once as the body of

	function (require, exports, module, React) { ... }

where require resolves only "react" and "react-dom/client". Any other name
fails the load with a module-not-found error. process, fetch and the file
system are not reachable.

# Lifecycle

The export surface is classified once at evaluation:

	LifecycleModern   exports.activate(api), awaited if it returns a promise
	LifecycleLegacy   exports.register(api), called synchronously
	LifecycleNone     neither; the runtime logs a warning

Evaluation, activation, deactivation and every host callback run under
their own timeout and are interrupted when it expires.

# Sandbox Globals

  - console.log/info/warn/error/debug forward to the host logger
  - setTimeout/setInterval/clearTimeout/clearInterval use host timers that
    are stopped when the module closes
  - require, process, module and exports are undefined at global scope
*/
package loader
