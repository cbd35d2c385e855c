package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"modpackBack/internal/acquisition"
	"modpackBack/internal/explore/fsm"
)

// Logger is the logging surface used by the client.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

const (
	defaultPingInterval = 30 * time.Second
	defaultRetryDelay   = 3 * time.Second
	writeTimeout        = 5 * time.Second
)

// Client keeps a websocket to the payments endpoint open and fans payment
// events out to subscribers.
type Client struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	logger Logger

	PingInterval time.Duration
	RetryDelay   time.Duration

	mu       sync.Mutex
	handlers map[int]func(acquisition.PaymentEvent)
	next     int
}

// NewClient constructs a client for wsURL authenticated with token.
func NewClient(wsURL, token string, logger Logger) *Client {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return &Client{
		url:          wsURL,
		header:       header,
		dialer:       websocket.DefaultDialer,
		logger:       logger,
		PingInterval: defaultPingInterval,
		RetryDelay:   defaultRetryDelay,
		handlers:     make(map[int]func(acquisition.PaymentEvent)),
	}
}

var _ acquisition.EventSource = (*Client)(nil)

// Subscribe registers handler for payment events. The returned func removes it.
func (c *Client) Subscribe(handler func(acquisition.PaymentEvent)) func() {
	c.mu.Lock()
	id := c.next
	c.next++
	c.handlers[id] = handler
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.handlers, id)
			c.mu.Unlock()
		})
	}
}

// Run connects and reconnects until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.logger.Errorf("payments ws: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.RetryDelay):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.logger.Infof("payments ws connected to %s", c.url)

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(c.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.TextMessage {
			continue
		}
		if ev, ok := Decode(data); ok {
			c.dispatch(ev)
		}
	}
}

func (c *Client) dispatch(ev acquisition.PaymentEvent) {
	c.mu.Lock()
	handlers := make([]func(acquisition.PaymentEvent), 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

type wireEvent struct {
	Type      string `json:"type"`
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// Decode parses a payments websocket frame. Heartbeats, malformed frames and
// event types other than processing, completed and failed are dropped.
func Decode(data []byte) (acquisition.PaymentEvent, bool) {
	text := strings.TrimSpace(string(data))
	if text == "" || strings.EqualFold(text, "pong") {
		return acquisition.PaymentEvent{}, false
	}
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil || w.PaymentID == "" {
		return acquisition.PaymentEvent{}, false
	}
	switch w.Type {
	case fsm.EventName(fsm.StatusProcessing), fsm.EventName(fsm.StatusCompleted), fsm.EventName(fsm.StatusFailed):
	default:
		return acquisition.PaymentEvent{}, false
	}
	status := w.Status
	if status == "" {
		status = strings.TrimPrefix(w.Type, "payment_")
	}
	return acquisition.PaymentEvent{PaymentID: w.PaymentID, Status: status, Message: w.Message}, true
}
