// Package packaging installs, lists and removes extension packages on disk.
//
// Layout: every installed extension lives in <root>/extensions/<id>/ with a
// manifest at its top level. The first manifest found wins, in this order:
//
//	extension.json  extension.yaml  extension.yml  extension.toml  package.json
//
// Install accepts a directory, a .zip, a tar (optionally gzip or zstd
// compressed) or an http(s) URL to one of those archives. The input type is
// sniffed from content, not the file name. Archives are extracted into a
// staging directory, validated, and only then swapped into place, so a bad
// package never replaces a good one.
//
// Enabled flags, the install time and the package digest are persisted in
// the host key/value store under "pkg:<id>".
package packaging
