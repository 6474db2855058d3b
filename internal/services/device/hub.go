package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
)

var (
	ErrNoDevice   = errors.New("no device connected")
	ErrDeviceBusy = errors.New("device send queue full")
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxFrame   = 16 << 10
	sendBuffer = 32
)

// FrameHandler receives every text frame read from the device.
type FrameHandler func(source string, payload []byte) error

// Hub holds the single websocket link to the tent controller. A new connection
// replaces the previous one.
type Hub struct {
	mu       sync.RWMutex
	conn     *link
	lastSeen time.Time

	onFrame  FrameHandler
	source   string
	upgrader websocket.Upgrader
	log      *slog.Logger
}

type link struct {
	ws     *websocket.Conn
	send   chan []byte
	remote string
	done   chan struct{}
	once   sync.Once
}

func (l *link) close() {
	l.once.Do(func() {
		close(l.done)
		_ = l.ws.Close()
	})
}

func NewHub(source string, onFrame FrameHandler, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		onFrame: onFrame,
		source:  source,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The controller is not a browser and sends no Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and serves the device until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	l := &link{ws: ws, send: make(chan []byte, sendBuffer), remote: r.RemoteAddr, done: make(chan struct{})}

	h.mu.Lock()
	prev := h.conn
	h.conn = l
	h.lastSeen = time.Now()
	h.mu.Unlock()
	if prev != nil {
		h.log.Info("device replaced", "old", prev.remote, "new", l.remote)
		prev.close()
	} else {
		h.log.Info("device connected", "remote", l.remote)
	}

	go h.writeLoop(l)
	h.readLoop(l)
}

func (h *Hub) readLoop(l *link) {
	defer func() {
		l.close()
		h.mu.Lock()
		if h.conn == l {
			h.conn = nil
			h.log.Warn("device disconnected", "remote", l.remote)
		}
		h.mu.Unlock()
	}()

	l.ws.SetReadLimit(maxFrame)
	_ = l.ws.SetReadDeadline(time.Now().Add(pongWait))
	l.ws.SetPongHandler(func(string) error {
		h.touch()
		return l.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, payload, err := l.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("device read failed", "remote", l.remote, "err", err)
			}
			return
		}
		_ = l.ws.SetReadDeadline(time.Now().Add(pongWait))
		h.touch()
		if kind != websocket.TextMessage || h.onFrame == nil {
			continue
		}
		if err := h.onFrame(h.source, payload); err != nil {
			h.log.Warn("device frame rejected", "remote", l.remote, "err", err)
		}
	}
}

func (h *Hub) writeLoop(l *link) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		l.close()
	}()

	for {
		select {
		case <-l.done:
			return
		case msg := <-l.send:
			_ = l.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Warn("device write failed", "remote", l.remote, "err", err)
				return
			}
		case <-ticker.C:
			_ = l.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastSeen = time.Now()
	h.mu.Unlock()
}

// Send queues cmd for the connected device without waiting for the write.
func (h *Hub) Send(ctx context.Context, cmd messages.ActuatorCommand) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", cmd, err)
	}

	h.mu.RLock()
	l := h.conn
	h.mu.RUnlock()
	if l == nil {
		return ErrNoDevice
	}

	select {
	case l.send <- body:
		return nil
	case <-l.done:
		return ErrNoDevice
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrDeviceBusy
	}
}

func (h *Hub) Available() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conn != nil
}

// LastSeen is the time of the last frame or pong from the device.
func (h *Hub) LastSeen() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastSeen
}

// Close drops the current device link.
func (h *Hub) Close() {
	h.mu.Lock()
	l := h.conn
	h.conn = nil
	h.mu.Unlock()
	if l != nil {
		_ = l.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), time.Now().Add(time.Second))
		l.close()
	}
}
