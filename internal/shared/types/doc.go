// Package types provides shared data structures for the extension host.
//
// Core Types:
//   - ExtensionDescriptor: Installed extension package metadata
//   - ExtensionStatus: Runtime lifecycle snapshot of one extension
//   - Result: Standard host operation result
//   - ProcessInfo, ProcessStats: Host process table entries
//   - Toast: User-visible notification
//
// Stream Types:
//   - WSMessage: WebSocket communication
//
// Example Usage:
//
//	desc := types.ExtensionDescriptor{
//	    ID:        "clock",
//	    Name:      "Clock",
//	    LocalPath: "/var/lib/exthost/extensions/clock",
//	    Enabled:   true,
//	}
//	source := filepath.Join(desc.LocalPath, desc.EntryFile())
package types
