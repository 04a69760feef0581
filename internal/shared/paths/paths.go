package paths

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Subdirectories of the host root
const (
	ExtensionsDir = "extensions"
	StorageDir    = "storage"
	StagingDir    = "staging"
	InboxDir      = "inbox"
)

// extensionIDPattern allows alphanumeric, dots, hyphens, underscores
var extensionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Layout resolves host paths below a single root
type Layout struct {
	Root string
}

// New creates a layout rooted at root
func New(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

// Extensions returns the install root for extension packages
func (l Layout) Extensions() string { return filepath.Join(l.Root, ExtensionsDir) }

// Storage returns the key/value data directory
func (l Layout) Storage() string { return filepath.Join(l.Root, StorageDir) }

// Staging returns the scratch directory used during install
func (l Layout) Staging() string { return filepath.Join(l.Root, StagingDir) }

// Inbox returns the drop directory for new packages
func (l Layout) Inbox() string { return filepath.Join(l.Root, InboxDir) }

// Extension returns the install directory for one extension
func (l Layout) Extension(id string) (string, error) {
	if err := ValidateExtensionID(id); err != nil {
		return "", err
	}
	return filepath.Join(l.Extensions(), id), nil
}

// StandardDirectories returns all directories that should exist
func (l Layout) StandardDirectories() []string {
	return []string{l.Extensions(), l.Storage(), l.Staging(), l.Inbox()}
}

// ValidateExtensionID checks if an extension ID is valid for path construction
func ValidateExtensionID(id string) error {
	if id == "" {
		return fmt.Errorf("extension ID cannot be empty")
	}
	if len(id) > 128 {
		return fmt.Errorf("extension ID too long")
	}
	if !extensionIDPattern.MatchString(id) || strings.Contains(id, "..") {
		return fmt.Errorf("extension ID %q contains invalid characters", id)
	}
	return nil
}

// Within resolves rel below base and rejects anything escaping it
func Within(base, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %q must be relative", rel)
	}
	base = filepath.Clean(base)
	full := filepath.Join(base, rel)
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %s", rel, base)
	}
	return full, nil
}
