package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud", OutputPaths: []string{"stdout"}})
	assert.Error(t, err)
}

func TestNewDefaultBuilds(t *testing.T) {
	logger, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, logger.Logger)
}

func TestForExtensionAddsField(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := Wrap(zap.New(core))

	logger.ForExtension("clock").Info("activated")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "clock", entries[0].ContextMap()[FieldExtensionID])
}

func TestWrapNil(t *testing.T) {
	logger := Wrap(nil)
	assert.NotNil(t, logger.Logger)
	logger.Info("discarded")
}
