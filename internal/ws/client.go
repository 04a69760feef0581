package ws

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/utils"
)

type client struct {
	id   id.ClientID
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	return &client{
		id:   id.NewClientID(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

// readPump handles inbound frames until the connection drops
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(utils.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var msg types.WSMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			c.sendError("", "invalid message")
			continue
		}
		c.hub.record("in", msg.Type)
		c.handle(msg)
	}
}

func (c *client) handle(msg types.WSMessage) {
	switch msg.Type {
	case "ping":
		c.enqueue(types.WSMessage{Type: "pong", ID: msg.ID})

	case "confirm_response":
		if msg.Approved == nil {
			c.sendError(msg.ID, "approved is required")
			return
		}
		if !c.hub.answer(id.ConfirmID(msg.ID), *msg.Approved) {
			c.sendError(msg.ID, "unknown confirmation")
		}

	case "ext_message":
		c.handleExtMessage(msg)

	default:
		c.sendError(msg.ID, "unknown message type")
	}
}

func (c *client) handleExtMessage(msg types.WSMessage) {
	if msg.ExtensionID == "" {
		c.sendError(msg.ID, "extension_id is required")
		return
	}
	if err := utils.ValidateChannel(msg.Channel); err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}
	if c.hub.publisher == nil {
		c.sendError(msg.ID, "extension messaging unavailable")
		return
	}

	delivered := c.hub.publisher.Publish(msg.ExtensionID, msg.Channel, msg.Data)
	c.enqueue(types.WSMessage{
		Type:        "ack",
		ID:          msg.ID,
		ExtensionID: msg.ExtensionID,
		Channel:     msg.Channel,
		Data:        map[string]int{"delivered": delivered},
	})
}

// writePump serializes writes and keeps the connection alive
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) enqueue(msg types.WSMessage) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	data, err := sonic.Marshal(msg)
	if err != nil {
		return
	}
	c.sendRaw(data)
	c.hub.record("out", msg.Type)
}

func (c *client) sendError(msgID, message string) {
	c.enqueue(types.WSMessage{Type: "error", ID: msgID, Message: message})
}

// sendRaw queues data; a client whose buffer is full is disconnected
func (c *client) sendRaw(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.hub.logger.Warn("dropping slow client", zap.String("client_id", c.id.String()))
		c.closed = true
		close(c.send)
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		c.mu.Lock()
		if !c.closed {
			c.closed = true
			close(c.send)
		}
		c.mu.Unlock()
	})
}
