package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/slots"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/types"
)

type published struct {
	extensionID string
	channel     string
	args        []interface{}
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []published
}

func (f *fakePublisher) Publish(extensionID, channel string, args ...interface{}) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, published{extensionID, channel, args})
	return 2
}

func (f *fakePublisher) last() published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestServer(t *testing.T, hub *Hub) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/stream", hub.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	welcome := readType(t, conn, "welcome")
	assert.True(t, strings.HasPrefix(welcome.ID, "cli_"))
	return conn
}

func readType(t *testing.T, conn *websocket.Conn, msgType string) types.WSMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", msgType)
		var msg types.WSMessage
		require.NoError(t, sonic.Unmarshal(data, &msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func write(t *testing.T, conn *websocket.Conn, msg types.WSMessage) {
	t.Helper()
	data, err := sonic.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestPingPong(t *testing.T) {
	hub := NewHub(nil)
	conn := dial(t, newTestServer(t, hub))

	write(t, conn, types.WSMessage{Type: "ping", ID: "p1"})
	pong := readType(t, conn, "pong")
	assert.Equal(t, "p1", pong.ID)
	assert.NotZero(t, pong.Timestamp)
}

func TestUnknownMessageType(t *testing.T) {
	hub := NewHub(nil)
	conn := dial(t, newTestServer(t, hub))

	write(t, conn, types.WSMessage{Type: "bogus", ID: "x"})
	msg := readType(t, conn, "error")
	assert.Equal(t, "x", msg.ID)
	assert.Contains(t, msg.Message, "unknown message type")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg = readType(t, conn, "error")
	assert.Equal(t, "invalid message", msg.Message)
}

func TestExtMessagePublishes(t *testing.T) {
	pub := &fakePublisher{}
	hub := NewHub(nil).WithPublisher(pub)
	conn := dial(t, newTestServer(t, hub))

	write(t, conn, types.WSMessage{
		Type:        "ext_message",
		ID:          "m1",
		ExtensionID: "acme.hello",
		Channel:     "refresh",
		Data:        map[string]interface{}{"force": true},
	})

	ack := readType(t, conn, "ack")
	assert.Equal(t, "m1", ack.ID)
	assert.Equal(t, map[string]interface{}{"delivered": float64(2)}, ack.Data)

	call := pub.last()
	assert.Equal(t, "acme.hello", call.extensionID)
	assert.Equal(t, "refresh", call.channel)
	require.Len(t, call.args, 1)
	assert.Equal(t, map[string]interface{}{"force": true}, call.args[0])
}

func TestExtMessageValidation(t *testing.T) {
	hub := NewHub(nil)
	conn := dial(t, newTestServer(t, hub))

	write(t, conn, types.WSMessage{Type: "ext_message", ID: "a", Channel: "refresh"})
	msg := readType(t, conn, "error")
	assert.Contains(t, msg.Message, "extension_id")

	write(t, conn, types.WSMessage{Type: "ext_message", ID: "b", ExtensionID: "acme.hello", Channel: "bad channel!"})
	msg = readType(t, conn, "error")
	assert.Equal(t, "b", msg.ID)

	write(t, conn, types.WSMessage{Type: "ext_message", ID: "c", ExtensionID: "acme.hello", Channel: "refresh"})
	msg = readType(t, conn, "error")
	assert.Contains(t, msg.Message, "unavailable")
}

func TestBroadcastToastAndSlotChange(t *testing.T) {
	hub := NewHub(nil)
	url := newTestServer(t, hub)
	a := dial(t, url)
	b := dial(t, url)
	require.Equal(t, 2, hub.Clients())

	hub.NotifyToast(types.Toast{
		ExtensionID: "acme.hello",
		Message:     "saved",
		Type:        types.ToastSuccess,
		Timestamp:   time.Unix(1700000000, 0),
	})
	for _, conn := range []*websocket.Conn{a, b} {
		msg := readType(t, conn, "toast")
		assert.Equal(t, "saved", msg.Message)
		assert.Equal(t, "acme.hello", msg.ExtensionID)
		assert.Equal(t, int64(1700000000), msg.Timestamp)
	}

	hub.NotifySlotChange(slots.Change{Kind: slots.ChangeRegistered, Slot: "sidebar", ExtensionID: "acme.hello", Views: 1, Version: 3})
	msg := readType(t, a, "slot_changed")
	assert.Equal(t, "sidebar", msg.Slot)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "registered", data["kind"])
}

func TestConfirmInstallNoClients(t *testing.T) {
	hub := NewHub(nil)
	ok, err := hub.ConfirmInstall(context.Background(), "/inbox/a.zip")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfirmInstallApproved(t *testing.T) {
	hub := NewHub(nil)
	conn := dial(t, newTestServer(t, hub))

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := hub.ConfirmInstall(context.Background(), "/inbox/hello.zip")
		done <- result{ok, err}
	}()

	prompt := readType(t, conn, "confirm_install")
	assert.Equal(t, "hello.zip", prompt.Message)
	require.NotEmpty(t, prompt.ID)

	approved := true
	write(t, conn, types.WSMessage{Type: "confirm_response", ID: prompt.ID, Approved: &approved})

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.True(t, r.ok)
	case <-time.After(3 * time.Second):
		t.Fatal("confirmation never resolved")
	}

	resolved := readType(t, conn, "confirm_resolved")
	assert.Equal(t, prompt.ID, resolved.ID)
	require.NotNil(t, resolved.Approved)
	assert.True(t, *resolved.Approved)
}

func TestConfirmInstallTimeout(t *testing.T) {
	hub := NewHub(nil).WithConfirmTimeout(50 * time.Millisecond)
	dial(t, newTestServer(t, hub))

	ok, err := hub.ConfirmInstall(context.Background(), "/inbox/slow.zip")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfirmInstallContextCanceled(t *testing.T) {
	hub := NewHub(nil)
	dial(t, newTestServer(t, hub))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ok, err := hub.ConfirmInstall(ctx, "/inbox/a.zip")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ok)
}

func TestUnknownConfirmation(t *testing.T) {
	hub := NewHub(nil)
	conn := dial(t, newTestServer(t, hub))

	approved := false
	write(t, conn, types.WSMessage{Type: "confirm_response", ID: "cfm_nope", Approved: &approved})
	msg := readType(t, conn, "error")
	assert.Equal(t, "unknown confirmation", msg.Message)
}

func TestConnectionMetrics(t *testing.T) {
	m := monitoring.NewMetricsWith(prometheus.NewRegistry())
	hub := NewHub(nil).WithMetrics(m)
	conn := dial(t, newTestServer(t, hub))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.WSConnections))

	conn.Close()
	assert.Eventually(t, func() bool {
		return hub.Clients() == 0
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.WSConnections))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WSMessages.WithLabelValues("out", "welcome")))
}
