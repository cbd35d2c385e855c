package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"modpackBack/internal/explore/events"
	"modpackBack/internal/explore/metrics"
)

// Logger is the logging contract used by the hub.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Authenticator resolves the user behind a websocket handshake.
type Authenticator func(r *http.Request) (int64, error)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
)

// PaymentHub keeps one websocket per user and pushes payment events to it.
type PaymentHub struct {
	upgrader websocket.Upgrader
	auth     Authenticator
	logger   Logger

	mu    sync.RWMutex
	conns map[int64]*websocket.Conn
	wmu   map[int64]*sync.Mutex
}

// NewPaymentHub constructs payment hub.
func NewPaymentHub(auth Authenticator, logger Logger) *PaymentHub {
	return &PaymentHub{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		auth:     auth,
		logger:   logger,
		conns:    make(map[int64]*websocket.Conn),
		wmu:      make(map[int64]*sync.Mutex),
	}
}

// ServeWS authenticates and upgrades the connection. A newer connection
// replaces the user's previous one.
func (h *PaymentHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("payments ws upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	if old, ok := h.conns[userID]; ok {
		_ = old.Close()
	} else {
		metrics.RealtimeClients.Inc()
	}
	h.conns[userID] = conn
	if _, ok := h.wmu[userID]; !ok {
		h.wmu[userID] = &sync.Mutex{}
	}
	h.mu.Unlock()

	go h.readLoop(userID, conn)
}

func (h *PaymentHub) readLoop(userID int64, conn *websocket.Conn) {
	defer func() {
		conn.Close()
		h.mu.Lock()
		if h.conns[userID] == conn {
			delete(h.conns, userID)
			delete(h.wmu, userID)
			metrics.RealtimeClients.Dec()
		}
		h.mu.Unlock()
	}()

	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		if mt == websocket.TextMessage && strings.EqualFold(strings.TrimSpace(string(msg)), "ping") {
			h.safeWrite(userID, func(c *websocket.Conn) error {
				return c.WriteMessage(websocket.TextMessage, []byte("pong"))
			})
		}
	}
}

func (h *PaymentHub) safeWrite(userID int64, writer func(*websocket.Conn) error) {
	h.mu.RLock()
	conn := h.conns[userID]
	mu := h.wmu[userID]
	h.mu.RUnlock()
	if conn == nil || mu == nil {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := writer(conn); err != nil {
		h.logger.Errorf("payments ws user %d write failed: %v", userID, err)
	}
}

// PushPaymentEvent sends a payment event to the user if connected.
func (h *PaymentHub) PushPaymentEvent(userID int64, ev events.PaymentEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	_, ok := h.conns[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.logger.Infof("WS → user %d: %s", userID, ev.Type)
	h.safeWrite(userID, func(conn *websocket.Conn) error {
		return conn.WriteMessage(websocket.TextMessage, data)
	})
}

// Connected reports whether the user currently has a socket.
func (h *PaymentHub) Connected(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[userID]
	return ok
}
