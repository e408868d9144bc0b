package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinChart/internal/domain/models"
	"FinChart/internal/usecase"
	xlogger "FinChart/pkg/logger"

	"github.com/gorilla/websocket"
)

// client is one WebSocket connection. readPump handles commands, writePump
// owns every data write, and refreshLoop redraws on hub notifications.
type client struct {
	hub     *Hub
	conn    *websocket.Conn
	session *usecase.Session
	remote  string

	send    chan []byte
	refresh chan struct{}
	done    chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, session *usecase.Session, remote string) *client {
	ctx, cancel := context.WithCancel(context.Background())
	return &client{
		hub:     h,
		conn:    conn,
		session: session,
		remote:  remote,
		send:    make(chan []byte, h.cfg.SendBuffer),
		refresh: make(chan struct{}, 1),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (c *client) run() {
	go c.writePump()
	go c.refreshLoop()
	c.readPump()
}

func (c *client) readPump() {
	defer c.shutdown()

	pongWait := 2 * c.hub.cfg.PingInterval
	c.conn.SetReadLimit(c.hub.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Warn("stream read", xlogger.String("remote", c.remote), xlogger.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var cmd models.StreamCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.sendError(fmt.Errorf("malformed command: %w", err))
			continue
		}
		c.handle(cmd)
	}
}

func (c *client) handle(cmd models.StreamCommand) {
	var (
		frame *models.StreamFrame
		err   error
	)
	switch cmd.Type {
	case "subscribe":
		frame, err = c.session.Subscribe(c.ctx, cmd.Symbol, cmd.Timeframe)
	case "resize":
		frame, err = c.session.Resize(c.ctx, cmd.Width, cmd.Height)
	default:
		err = fmt.Errorf("unknown command %q", cmd.Type)
	}
	if err != nil {
		c.sendError(err)
		return
	}
	if frame != nil {
		c.enqueue(frame)
	}
}

func (c *client) refreshLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.refresh:
			frame, err := c.session.Refresh(c.ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					c.sendError(err)
				}
				continue
			}
			if frame != nil {
				c.enqueue(frame)
			}
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.logger.Debug("stream write", xlogger.String("remote", c.remote), xlogger.Error(err))
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

// enqueue drops the frame when the peer is too slow to drain its buffer;
// the next refresh carries the latest state anyway.
func (c *client) enqueue(f *models.StreamFrame) {
	b, err := json.Marshal(f)
	if err != nil {
		c.hub.logger.Error("stream marshal", xlogger.Error(err))
		return
	}
	select {
	case c.send <- b:
		if f.Type == "frame" {
			c.hub.metrics.RecordFramePushed()
		}
	case <-c.done:
	default:
		c.hub.metrics.RecordError("stream_send_full")
		c.hub.logger.Debug("stream frame dropped", xlogger.String("remote", c.remote))
	}
}

func (c *client) sendError(err error) {
	c.enqueue(&models.StreamFrame{Type: "error", Message: err.Error()})
}

func (c *client) scheduleRefresh() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

func (c *client) close(code int, reason string) {
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	_ = c.conn.Close()
}

func (c *client) shutdown() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
		c.hub.unregister(c)
		_ = c.conn.Close()
	})
}
