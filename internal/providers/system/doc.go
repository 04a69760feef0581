// Package system contributes the system.* host operations: runtime info,
// server time, a ping, and a bounded log extensions can write to and read
// back.
package system
