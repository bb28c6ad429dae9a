package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Frame is one server push.
type Frame struct {
	Feed string `json:"feed"`
	Key  string `json:"key,omitempty"`
	Data any    `json:"data"`
}

// conn serializes writes to the socket through a single writer goroutine.
type conn struct {
	ws     *websocket.Conn
	uid    string
	send   chan Frame
	logger *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, uid string, logger *zap.Logger) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{
		ws:     ws,
		uid:    uid,
		send:   make(chan Frame, sendBuffer),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	go c.writeLoop()
	return c
}

func (c *conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case f := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(f); err != nil {
				c.logger.Debug("Websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// push queues f for the writer. It returns false once the connection is closed.
func (c *conn) push(f Frame) bool {
	select {
	case c.send <- f:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *conn) pushError(err error) {
	c.push(Frame{Feed: "error", Data: err.Error()})
}

// close stops the writer and unblocks the reader. Safe to call more than once.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		go func() {
			// Give the writer a moment to send the close frame.
			time.Sleep(100 * time.Millisecond)
			_ = c.ws.Close()
		}()
	})
}
