package types

import "time"

// DefaultMain is the entry file used when a manifest names none
const DefaultMain = "index.js"

// ExtensionDescriptor describes an installed extension package
type ExtensionDescriptor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	IconPath    *string   `json:"icon_path,omitempty"`
	LocalPath   string    `json:"local_path"`
	Main        string    `json:"main"`
	Enabled     bool      `json:"enabled"`
	Digest      string    `json:"digest,omitempty"` // blake2b-256 of the package contents
	InstalledAt time.Time `json:"installed_at"`
}

// EntryFile returns the entry file name, falling back to DefaultMain
func (d ExtensionDescriptor) EntryFile() string {
	if d.Main == "" {
		return DefaultMain
	}
	return d.Main
}

// State represents extension lifecycle states
type State string

const (
	StateDisabled  State = "disabled"
	StateLoading   State = "loading"
	StateActive    State = "active"
	StateUnloading State = "unloading"
	StateFailed    State = "failed"
)

// ExtensionStatus is a point-in-time view of one extension's runtime state
type ExtensionStatus struct {
	ID         string     `json:"id"`
	State      State      `json:"state"`
	Lifecycle  string     `json:"lifecycle,omitempty"`
	Exports    []string   `json:"exports,omitempty"`
	Views      int        `json:"views"`
	LastError  *string    `json:"last_error,omitempty"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	Generation uint64     `json:"generation"`
	ActiveAt   *time.Time `json:"active_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Stats contains runtime statistics
type Stats struct {
	Installed int `json:"installed"`
	Active    int `json:"active"`
	Failed    int `json:"failed"`
	Views     int `json:"views"`
	Slots     int `json:"slots"`
}
