// Package settings provides host settings as settings.* host operations.
//
// Defaults are built in; overrides persist in the key/value store under
// "settings:<key>". Extensions may read every setting but only write keys
// under "ext.<extension id>.".
package settings
