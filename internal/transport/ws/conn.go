package ws

import (
	"context"
	"time"

	"github.com/Freeeeeet/scheduler_hub/internal/hub"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// conn связывает websocket соединение с клиентом хаба
type conn struct {
	ws     *websocket.Conn
	client *hub.Client
	hub    *hub.Hub
	router *Router
	logger *zap.Logger
}

// readPump читает кадры клиента до ошибки или закрытия соединения
func (c *conn) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c.client)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Websocket closed unexpectedly",
					zap.String("client_id", c.client.ID.String()),
					zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		c.router.Handle(ctx, c.client, frame)
	}
}

// writePump отправляет очередь клиента и пинги
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.client.Send():
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("Websocket write failed",
					zap.String("client_id", c.client.ID.String()),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.client.Done():
			c.flush()
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// flush дописывает уже поставленные в очередь сообщения
func (c *conn) flush() {
	for {
		select {
		case msg := <-c.client.Send():
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
