package exterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := New(KindModuleNotFound, "alpha", errors.New(`cannot find module "fs"`))

	assert.True(t, errors.Is(err, ErrModuleNotFound))
	assert.False(t, errors.Is(err, ErrExtensionLoad))
	assert.True(t, errors.Is(err, &Error{Kind: KindModuleNotFound, ExtensionID: "alpha"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindModuleNotFound, ExtensionID: "beta"}))
}

func TestErrorIsThroughWrapping(t *testing.T) {
	inner := New(KindPersistence, "alpha", errors.New("disk full"))
	wrapped := fmt.Errorf("toggle failed: %w", inner)

	assert.True(t, errors.Is(wrapped, ErrPersistence))

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindPersistence, kind)
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"kind only", ErrActivation, "activation"},
		{"with id", &Error{Kind: KindActivation, ExtensionID: "a"}, "extension a: activation"},
		{"with cause", New(KindActivation, "a", errors.New("boom")), "extension a: activation: boom"},
		{"cause without id", New(KindPersistence, "", errors.New("nope")), "persistence: nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsForeign(t *testing.T) {
	assert.True(t, IsForeign(New(KindExtensionLoad, "a", nil)))
	assert.True(t, IsForeign(New(KindDeactivation, "a", nil)))
	assert.False(t, IsForeign(New(KindPersistence, "a", nil)))
	assert.False(t, IsForeign(New(KindEntryNotFound, "a", nil)))
	assert.False(t, IsForeign(errors.New("plain")))
}
