package ws

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/slots"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

var ErrHubClosed = errors.New("stream hub closed")

// Publisher delivers inbound extension messages
type Publisher interface {
	Publish(extensionID, channel string, args ...interface{}) int
}

// Hub fans host events out to websocket clients
type Hub struct {
	mu      sync.RWMutex
	clients map[id.ClientID]*client
	pending map[id.ConfirmID]chan bool
	closed  bool

	publisher      Publisher
	confirmTimeout time.Duration
	upgrader       websocket.Upgrader
	logger         *logging.Logger
	metrics        *monitoring.Metrics
}

// NewHub creates an empty hub
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		clients:        make(map[id.ClientID]*client),
		pending:        make(map[id.ConfirmID]chan bool),
		confirmTimeout: 2 * time.Minute,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS middleware guards the HTTP surface
			},
		},
		logger: logger.Named("ws"),
	}
}

// WithMetrics enables websocket metrics
func (h *Hub) WithMetrics(m *monitoring.Metrics) *Hub {
	h.metrics = m
	return h
}

// WithPublisher routes ext_message frames to p
func (h *Hub) WithPublisher(p Publisher) *Hub {
	h.publisher = p
	return h
}

// WithConfirmTimeout bounds how long an install prompt waits for an answer
func (h *Hub) WithConfirmTimeout(d time.Duration) *Hub {
	if d > 0 {
		h.confirmTimeout = d
	}
	return h
}

// HandleConnection upgrades the request and serves the client until it leaves
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := newClient(h, conn)
	if !h.register(cl) {
		conn.Close()
		return
	}

	go cl.writePump()
	cl.enqueue(types.WSMessage{Type: "welcome", ID: cl.id.String(), Timestamp: time.Now().Unix()})
	cl.readPump()
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends msg to every client and returns how many accepted it
func (h *Hub) Broadcast(msg types.WSMessage) int {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	data, err := sonic.Marshal(msg)
	if err != nil {
		h.logger.Error("encode broadcast", zap.String("type", msg.Type), zap.Error(err))
		return 0
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		targets = append(targets, cl)
	}
	h.mu.RUnlock()

	sent := 0
	for _, cl := range targets {
		if cl.sendRaw(data) {
			sent++
		}
	}
	h.record("out", msg.Type)
	return sent
}

// NotifyToast broadcasts an accepted toast
func (h *Hub) NotifyToast(t types.Toast) {
	h.Broadcast(types.WSMessage{
		Type:        "toast",
		ExtensionID: t.ExtensionID,
		Message:     t.Message,
		Data:        map[string]string{"type": string(t.Type)},
		Timestamp:   t.Timestamp.Unix(),
	})
}

// NotifySlotChange tells clients to re-fetch a slot. Safe to call from a
// registry subscriber: it never blocks.
func (h *Hub) NotifySlotChange(c slots.Change) {
	h.Broadcast(types.WSMessage{
		Type:        "slot_changed",
		Slot:        c.Slot,
		ExtensionID: c.ExtensionID,
		Data:        c,
	})
}

// ConfirmInstall asks connected clients whether path may be installed.
// With nobody connected, or no answer in time, the install is declined.
func (h *Hub) ConfirmInstall(ctx context.Context, path string) (bool, error) {
	if h.Clients() == 0 {
		h.logger.Warn("install prompt with no connected clients", zap.String("path", path))
		return false, nil
	}

	cid := id.NewConfirmID()
	answer := make(chan bool, 1)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false, ErrHubClosed
	}
	h.pending[cid] = answer
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, cid)
		h.mu.Unlock()
	}()

	h.Broadcast(types.WSMessage{
		Type:    "confirm_install",
		ID:      cid.String(),
		Message: filepath.Base(path),
		Data:    map[string]string{"path": path},
	})

	timer := time.NewTimer(h.confirmTimeout)
	defer timer.Stop()

	var approved bool
	select {
	case approved = <-answer:
	case <-timer.C:
		h.logger.Info("install prompt timed out", zap.String("path", path))
	case <-ctx.Done():
		h.resolved(cid, false)
		return false, ctx.Err()
	}
	h.resolved(cid, approved)
	return approved, nil
}

// Close disconnects every client and declines pending prompts
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	for cid, ch := range h.pending {
		select {
		case ch <- false:
		default:
		}
		delete(h.pending, cid)
	}
	h.mu.Unlock()

	for _, cl := range clients {
		cl.close()
	}
}

func (h *Hub) answer(cid id.ConfirmID, approved bool) bool {
	h.mu.RLock()
	ch, ok := h.pending[cid]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case ch <- approved:
	default:
		// Someone else answered first
	}
	return true
}

func (h *Hub) resolved(cid id.ConfirmID, approved bool) {
	h.Broadcast(types.WSMessage{Type: "confirm_resolved", ID: cid.String(), Approved: &approved})
}

func (h *Hub) register(cl *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl.id] = cl
	if h.metrics != nil {
		h.metrics.IncWSConnections()
	}
	h.logger.Debug("client connected", zap.String("client_id", cl.id.String()))
	return true
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	_, ok := h.clients[cl.id]
	delete(h.clients, cl.id)
	h.mu.Unlock()

	if ok {
		if h.metrics != nil {
			h.metrics.DecWSConnections()
		}
		h.logger.Debug("client disconnected", zap.String("client_id", cl.id.String()))
	}
}

func (h *Hub) record(direction, msgType string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(direction, msgType)
	}
}
