// Package content fetches extension entry sources.
//
// FileFetcher reads from the local install root and refuses any path that
// escapes it. HTTPFetcher pulls the same layout from a remote base URL
// (<base>/<extension dir>/<main>) behind a circuit breaker.
//
// Both normalize text to UTF-8: bytes that are not valid UTF-8 are run
// through charset detection and decoded, and a leading byte order mark is
// dropped.
package content
