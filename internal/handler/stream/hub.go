package stream

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"FinChart/internal/chart"
	"FinChart/internal/domain/models"
	domrepo "FinChart/internal/domain/repository"
	"FinChart/internal/usecase"
	xlogger "FinChart/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Config controls stream sessions.
type Config struct {
	Format       chart.Format
	Width        int
	Height       int
	PingInterval time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64
	SendBuffer   int
	AllowOrigins []string
}

// Hub tracks chart WebSocket sessions and pushes redrawn frames to the
// sessions subscribed to a subject.
type Hub struct {
	uc       *usecase.ChartUseCase
	cfg      Config
	metrics  domrepo.Metrics
	logger   *xlogger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub(uc *usecase.ChartUseCase, cfg Config, metrics domrepo.Metrics, logger *xlogger.Logger) *Hub {
	if cfg.Format == "" {
		cfg.Format = chart.FormatSVG
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 4096
	}
	cfg.SendBuffer = max(cfg.SendBuffer, 1)

	h := &Hub{
		uc:      uc,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/chart", h.ServeWS)
}

// ServeWS upgrades the request and runs the session until the peer leaves.
func (h *Hub) ServeWS(c echo.Context) error {
	session, err := h.uc.NewSession(h.cfg.Format, h.cfg.Width, h.cfg.Height)
	if err != nil {
		return err
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the error response
		h.logger.Warn("websocket upgrade failed", xlogger.String("remote", c.RealIP()), xlogger.Error(err))
		return nil
	}

	cl := newClient(h, conn, session, c.RealIP())
	if !h.register(cl) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(time.Second))
		_ = conn.Close()
		return nil
	}
	cl.run()
	return nil
}

// Refresh schedules a redraw for every session showing s and returns how many were scheduled.
func (h *Hub) Refresh(s models.Subject) int {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()

	n := 0
	for _, cl := range clients {
		if cl.session.Subject() == s {
			cl.scheduleRefresh()
			n++
		}
	}
	return n
}

// Len returns the number of open sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every session and rejects new ones.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	for _, cl := range clients {
		cl.close(websocket.CloseGoingAway, "server shutting down")
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for h.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (h *Hub) register(cl *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl] = struct{}{}
	h.metrics.SetStreamSessions(len(h.clients))
	h.logger.Debug("stream session opened", xlogger.String("remote", cl.remote), xlogger.Int("sessions", len(h.clients)))
	return true
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; !ok {
		return
	}
	delete(h.clients, cl)
	h.metrics.SetStreamSessions(len(h.clients))
	h.logger.Debug("stream session closed", xlogger.String("remote", cl.remote), xlogger.Int("sessions", len(h.clients)))
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.cfg.AllowOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
