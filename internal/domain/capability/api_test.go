package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/ui"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/types"
)

type mockBridge struct {
	mock.Mock
}

func (m *mockBridge) HasHostOperation(name string) bool {
	return m.Called(name).Bool(0)
}

func (m *mockBridge) InvokeHostOperation(ctx context.Context, name string, args ...interface{}) (interface{}, error) {
	ret := m.Called(ctx, name, args)
	return ret.Get(0), ret.Error(1)
}

func (m *mockBridge) InvokeExtensionChannel(ctx context.Context, extensionID, channel string, args ...interface{}) (interface{}, error) {
	ret := m.Called(ctx, extensionID, channel, args)
	return ret.Get(0), ret.Error(1)
}

func (m *mockBridge) SubscribeExtensionChannel(extensionID, channel string, callback func(args ...interface{})) func() {
	ret := m.Called(extensionID, channel)
	return ret.Get(0).(func())
}

type memStore struct {
	data map[string][]byte
	err  error
}

func (s *memStore) Get(key string) ([]byte, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(key string, value []byte) error {
	if s.err != nil {
		return s.err
	}
	s.data[key] = value
	return nil
}

type recordingSink struct {
	calls []string
}

func (r *recordingSink) RegisterView(extensionID, slot string, _ ui.Component) {
	r.calls = append(r.calls, extensionID+"@"+slot)
}

type recordingNotifier struct {
	toasts []types.Toast
}

func (r *recordingNotifier) Toast(extensionID, message string, t types.ToastType) {
	r.toasts = append(r.toasts, types.Toast{ExtensionID: extensionID, Message: message, Type: t})
}

func TestCreateAPIIsScoped(t *testing.T) {
	sink := &recordingSink{}
	f := NewFactory(Services{Views: sink})

	api := f.CreateAPI("clock", "/ext/clock")

	assert.Equal(t, Meta{ID: "clock", LocalPath: "/ext/clock"}, api.Meta)
	api.UI.RegisterView("header.right", ui.Static{Node: ui.Text("x")})
	assert.Equal(t, []string{"clock@header.right"}, sink.calls)
}

func TestToastPrefixAndDefaultType(t *testing.T) {
	n := &recordingNotifier{}
	api := NewFactory(Services{Notifier: n}).CreateAPI("clock", "")

	api.UI.Toast("tick", "")
	api.UI.Toast("bad", "error")

	require.Len(t, n.toasts, 2)
	assert.Equal(t, "[clock] tick", n.toasts[0].Message)
	assert.Equal(t, types.ToastInfo, n.toasts[0].Type)
	assert.Equal(t, types.ToastError, n.toasts[1].Type)
}

func TestNilServicesDoNotPanic(t *testing.T) {
	api := NewFactory(Services{}).CreateAPI("x", "")

	assert.NotPanics(t, func() {
		api.UI.RegisterView("s", nil)
		api.UI.Toast("hi", "info")
	})
	assert.Nil(t, api.Storage.Get("k"))
	assert.ErrorIs(t, api.Storage.Set("k", 1), ErrNoStore)

	_, err := api.IPC.Invoke(context.Background(), "system.info")
	assert.ErrorIs(t, err, ErrNoBridge)

	_, err = api.Launcher.GetActiveProcesses(context.Background())
	assert.ErrorIs(t, err, ErrNoProcesses)
}

func TestInvokeRoutesHostOperations(t *testing.T) {
	ctx := context.Background()
	b := &mockBridge{}
	b.On("HasHostOperation", "system.info").Return(true)
	b.On("HasHostOperation", "sync").Return(false)
	fromClock := mock.MatchedBy(func(c context.Context) bool {
		extensionID, ok := ExtensionIDFromContext(c)
		return ok && extensionID == "clock"
	})
	b.On("InvokeHostOperation", fromClock, "system.info", []interface{}(nil)).Return("host", nil)
	b.On("InvokeExtensionChannel", fromClock, "clock", "sync", []interface{}{1}).Return("ext", nil)

	api := NewFactory(Services{Bridge: b}).CreateAPI("clock", "")

	got, err := api.IPC.Invoke(ctx, "system.info")
	require.NoError(t, err)
	assert.Equal(t, "host", got)

	got, err = api.IPC.Invoke(ctx, "sync", 1)
	require.NoError(t, err)
	assert.Equal(t, "ext", got)

	b.AssertExpectations(t)
}

func TestReleaseDropsSubscriptions(t *testing.T) {
	dropped := 0
	b := &mockBridge{}
	b.On("SubscribeExtensionChannel", "clock", "tick").Return(func() { dropped++ })

	api := NewFactory(Services{Bridge: b}).CreateAPI("clock", "")

	unsub, err := api.IPC.On("tick", func(...interface{}) {})
	require.NoError(t, err)
	_, err = api.IPC.On("tick", func(...interface{}) {})
	require.NoError(t, err)
	assert.Equal(t, 2, api.Subscriptions())

	unsub()
	unsub()
	assert.Equal(t, 1, dropped)

	api.Release()
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 0, api.Subscriptions())

	_, err = api.IPC.On("tick", func(...interface{}) {})
	assert.ErrorIs(t, err, ErrReleased)
	assert.Equal(t, 3, dropped)
}

func TestStorageNamespacingAndRoundTrip(t *testing.T) {
	store := &memStore{data: map[string][]byte{}}
	api := NewFactory(Services{Store: store}).CreateAPI("clock", "")

	require.NoError(t, api.Storage.Set("prefs", map[string]interface{}{"tz": "UTC"}))
	_, ok := store.data["ext:clock:prefs"]
	assert.True(t, ok)

	got := api.Storage.Get("prefs")
	assert.Equal(t, map[string]interface{}{"tz": "UTC"}, got)
}

func TestStorageGetMissingReturnsNil(t *testing.T) {
	store := &memStore{data: map[string][]byte{"ext:clock:broken": []byte("{not json")}}
	api := NewFactory(Services{Store: store}).CreateAPI("clock", "")

	assert.Nil(t, api.Storage.Get("missing"))
	assert.Nil(t, api.Storage.Get("broken"))

	store.err = errors.New("disk gone")
	assert.Nil(t, api.Storage.Get("missing"))
	assert.Error(t, api.Storage.Set("k", 1))
}

func TestStorageIsolatedBetweenExtensions(t *testing.T) {
	store := &memStore{data: map[string][]byte{}}
	f := NewFactory(Services{Store: store})

	require.NoError(t, f.CreateAPI("a", "").Storage.Set("k", "from-a"))
	assert.Nil(t, f.CreateAPI("b", "").Storage.Get("k"))
}
