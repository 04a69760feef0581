// Package providers groups the host services extensions reach through their
// capability API or as host operations on the ipc bridge.
//
// Available Providers:
//   - storage: File-backed key/value store (extension storage, enabled flags)
//   - packaging: Installed package discovery, install and removal
//   - content: Entry source fetching from disk or a remote base URL
//   - ipc: Host operation table and extension channels
//   - system: system.* operations and the log buffer
//   - launcher: Host process table, launcher.* operations
//   - settings: settings.* operations backed by storage
//   - notify: Rate limited toast sink
//   - watcher: Inbox watcher for dropped packages
package providers
