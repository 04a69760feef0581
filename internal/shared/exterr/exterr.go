// Package exterr defines the error taxonomy of the extension runtime.
//
// Every failure that crosses a runtime boundary is an *Error carrying a Kind
// and the owning extension id. Kinds are matched with errors.Is against the
// package sentinels:
//
//	if errors.Is(err, exterr.ErrModuleNotFound) {
//	    // sandboxed require outside the whitelist
//	}
//
// Errors raised by foreign code (load, activate, deactivate) are logged and
// recorded by the runtime, never returned to the host. Persistence errors are
// host-side and are returned to the caller.
package exterr

import (
	"errors"
	"fmt"
)

// Kind classifies an extension runtime failure
type Kind string

const (
	KindEntryNotFound  Kind = "entry_not_found"
	KindModuleNotFound Kind = "module_not_found"
	KindExtensionLoad  Kind = "extension_load"
	KindActivation     Kind = "activation"
	KindDeactivation   Kind = "deactivation"
	KindPersistence    Kind = "persistence"
)

// Sentinels for errors.Is matching on kind alone.
var (
	ErrEntryNotFound  = &Error{Kind: KindEntryNotFound}
	ErrModuleNotFound = &Error{Kind: KindModuleNotFound}
	ErrExtensionLoad  = &Error{Kind: KindExtensionLoad}
	ErrActivation     = &Error{Kind: KindActivation}
	ErrDeactivation   = &Error{Kind: KindDeactivation}
	ErrPersistence    = &Error{Kind: KindPersistence}
)

// Error is a classified extension runtime failure
type Error struct {
	Kind        Kind
	ExtensionID string
	Err         error
}

// New wraps err with a kind and the owning extension id
func New(kind Kind, extensionID string, err error) *Error {
	return &Error{Kind: kind, ExtensionID: extensionID, Err: err}
}

// Newf builds an *Error from a format string
func Newf(kind Kind, extensionID, format string, args ...interface{}) *Error {
	return New(kind, extensionID, fmt.Errorf(format, args...))
}

func (e *Error) Error() string {
	switch {
	case e.ExtensionID == "" && e.Err == nil:
		return string(e.Kind)
	case e.ExtensionID == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Err == nil:
		return fmt.Sprintf("extension %s: %s", e.ExtensionID, e.Kind)
	default:
		return fmt.Sprintf("extension %s: %s: %v", e.ExtensionID, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind, and on ExtensionID when the target names one
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.ExtensionID == "" || t.ExtensionID == e.ExtensionID
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsForeign reports whether err originated in extension code
func IsForeign(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case KindModuleNotFound, KindExtensionLoad, KindActivation, KindDeactivation:
		return true
	}
	return false
}
