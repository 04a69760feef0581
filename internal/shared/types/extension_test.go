package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntryFileDefault(t *testing.T) {
	assert.Equal(t, "index.js", ExtensionDescriptor{}.EntryFile())
	assert.Equal(t, "main.js", ExtensionDescriptor{Main: "main.js"}.EntryFile())
}

func TestParseToastType(t *testing.T) {
	tests := []struct {
		in   string
		want ToastType
	}{
		{"", ToastInfo},
		{"info", ToastInfo},
		{"error", ToastError},
		{"warning", ToastWarning},
		{"bogus", ToastInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseToastType(tt.in), tt.in)
	}
}

func TestResultHelpers(t *testing.T) {
	ok := Success(map[string]int{"n": 1})
	assert.True(t, ok.Success)
	assert.Nil(t, ok.Error)

	bad := Failure(errors.New("disk full"))
	assert.False(t, bad.Success)
	if assert.NotNil(t, bad.Error) {
		assert.Equal(t, "disk full", *bad.Error)
	}
}
