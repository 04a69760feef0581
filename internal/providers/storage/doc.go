// Package storage provides the persistent key/value store behind extension
// storage and package flags.
//
// Each key is one JSON file under the store directory, named by the
// URL-safe base64 of the key. Reads are served from an in-memory cache once
// a key has been seen; writes go to disk first and replace the file
// atomically.
package storage
