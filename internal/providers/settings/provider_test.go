package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/capability"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/ipc"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/storage"
)

func newProvider(t *testing.T, dir string) (*Provider, *ipc.Bridge) {
	t.Helper()
	store, err := storage.New(dir)
	require.NoError(t, err)
	p, err := NewProvider(store)
	require.NoError(t, err)

	bridge := ipc.NewBridge(nil)
	bridge.Register(p)
	return p, bridge
}

func TestDefaults(t *testing.T) {
	p, bridge := newProvider(t, t.TempDir())

	assert.True(t, p.Bool("general.notifications", false))
	assert.False(t, p.Bool("missing", false))
	assert.False(t, p.Bool("general.theme", false), "non-boolean falls back to default")

	out, err := bridge.InvokeHostOperation(context.Background(), "settings.get", "general.theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", out.(Setting).Value)

	_, err = bridge.InvokeHostOperation(context.Background(), "settings.get", "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	cats, err := bridge.InvokeHostOperation(context.Background(), "settings.categories")
	require.NoError(t, err)
	assert.Equal(t, []string{"appearance", "developer", "general"}, cats)
}

func TestSetPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	p, _ := newProvider(t, dir)

	_, err := p.Set("general.theme", "light")
	require.NoError(t, err)
	_, err = p.Set("ext.clock.format", "24h")
	require.NoError(t, err)

	p2, _ := newProvider(t, dir)
	s, ok := p2.Get("general.theme")
	require.True(t, ok)
	assert.Equal(t, "light", s.Value)
	assert.Equal(t, "dark", s.Default)
	assert.Equal(t, "general", s.Category)

	s, ok = p2.Get("ext.clock.format")
	require.True(t, ok)
	assert.Equal(t, "24h", s.Value)
	assert.Equal(t, "extensions", s.Category)
	assert.Equal(t, "string", s.Type)
}

func TestResetRestoresDefault(t *testing.T) {
	dir := t.TempDir()
	p, _ := newProvider(t, dir)

	_, err := p.Set("general.theme", "light")
	require.NoError(t, err)
	s, err := p.Reset("general.theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", s.Value)

	_, err = p.Set("ext.clock.format", "24h")
	require.NoError(t, err)
	_, err = p.Reset("ext.clock.format")
	require.NoError(t, err)
	_, ok := p.Get("ext.clock.format")
	assert.False(t, ok)

	p2, _ := newProvider(t, dir)
	s, _ = p2.Get("general.theme")
	assert.Equal(t, "dark", s.Value)

	_, err = p.Reset("never.set")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExtensionWritesAreNamespaced(t *testing.T) {
	_, bridge := newProvider(t, t.TempDir())
	ctx := capability.WithExtensionID(context.Background(), "clock")

	_, err := bridge.InvokeHostOperation(ctx, "settings.set", "general.theme", "light")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = bridge.InvokeHostOperation(ctx, "settings.set", "ext.other.format", "x")
	assert.ErrorIs(t, err, ErrForbidden)

	out, err := bridge.InvokeHostOperation(ctx, "settings.set", "ext.clock.format", "24h")
	require.NoError(t, err)
	assert.Equal(t, "24h", out.(Setting).Value)

	_, err = bridge.InvokeHostOperation(ctx, "settings.reset", "general.theme")
	assert.ErrorIs(t, err, ErrForbidden)

	// Host callers carry no extension id
	_, err = bridge.InvokeHostOperation(context.Background(), "settings.set", "general.theme", "light")
	assert.NoError(t, err)
}

func TestListByCategory(t *testing.T) {
	_, bridge := newProvider(t, t.TempDir())

	out, err := bridge.InvokeHostOperation(context.Background(), "settings.list", "general")
	require.NoError(t, err)
	m := out.(map[string]interface{})
	assert.Equal(t, 3, m["count"])
	settings := m["settings"].([]Setting)
	assert.Equal(t, "general.language", settings[0].Key)

	_, err = bridge.InvokeHostOperation(context.Background(), "settings.set", "general.theme")
	assert.Error(t, err)
}
