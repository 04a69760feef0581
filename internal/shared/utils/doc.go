// Package utils provides hashing and input validation shared by the host.
//
// Utilities:
//   - Hash: Package digests (BLAKE2b-256 by default, SHA-256 available)
//   - Validation: Limits for manifests, channels and inbound messages
package utils
